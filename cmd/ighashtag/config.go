package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ighashtag/pkg/config"
	"ighashtag/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ighashtag configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (APIFY_TOKEN, SESSION_ID, IGHASHTAG_*)
  - .env in the working directory and ~/.ighashtag.env
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'ighashtag.yaml' in the working directory unless a
different path is given with --config. Credentials are never written to it.

With --from-current the file holds the effective configuration instead:
defaults merged with any discovered config file, .env files and IGHASHTAG_*
environment variables.`,
	RunE: runConfigInit,
}

var initFromCurrent bool

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API token and
session id are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration and report missing credentials.

This command checks:
  - YAML syntax
  - Value ranges
  - Output and log directories can be created
  - Credentials are available from the environment or the keychain`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&initFromCurrent, "from-current", false, "write the effective configuration instead of the commented example")
}

const exampleConfig = `# ighashtag configuration file
#
# Credentials do not belong here. Export APIFY_TOKEN and SESSION_ID, put
# them in a .env file, or run 'ighashtag auth login'.

apify:
  # Platform API root
  base_url: "https://api.apify.com/v2"
  # Hashtag scraper actor, owner~name
  actor_id: "apify~instagram-hashtag-scraper"
  # Timeout for a single HTTP request
  request_timeout: 60s

scrape:
  hashtags:
    - hyderabadfoodie
    - indianfoodie
  # Maximum results per hashtag
  results_limit: 30

poll:
  # Wait between run status checks
  interval: 10s
  # Give up waiting after this long, 0 waits forever
  timeout: 30m
  # Give up after this many status checks, 0 means no limit
  max_attempts: 0

output:
  directory: "."
  # Fixed file name; when empty the pattern below is used
  file_name: ""
  file_name_pattern: "hashtag_posts_{timestamp}.csv"

retry:
  # Attempts per platform request, 1 disables retries
  max_attempts: 1
  initial_backoff: 2s
  max_backoff: 30s
  multiplier: 2.0

rate_limit:
  requests_per_minute: 60

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # Optional log file, appended to
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "ighashtag.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		ui.Println("\nTo overwrite, first remove the existing file:")
		ui.Println("  rm " + configPath)
		return &exitError{code: 1}
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err)
			return &exitError{code: 1, err: err}
		}
	}

	if initFromCurrent {
		cfg, err := config.Load("", nil)
		if err != nil {
			ui.PrintError("Failed to load configuration", err)
			return &exitError{code: 1, err: err}
		}
		if err := cfg.WithoutCredentials().Save(configPath); err != nil {
			ui.PrintError("Failed to create configuration file", err)
			return &exitError{code: 1, err: err}
		}
	} else if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err)
		return &exitError{code: 1, err: err}
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Edit the hashtags and output settings")
	ui.Println("2. Run 'ighashtag config validate' to check the configuration")
	ui.Println("3. Start scraping with 'ighashtag scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return &exitError{code: 1, err: err}
	}
	newCredentialManager().Apply(cfg, "")

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		ui.PrintError("Failed to format configuration", err)
		return &exitError{code: 1, err: err}
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	ui.Println()
	ui.PrintInfo("Configuration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path != "" {
		ui.PrintInfo("Validating configuration", path)
	} else {
		ui.PrintInfo("Validating configuration", "defaults and environment")
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return &exitError{code: 1, err: err}
	}
	newCredentialManager().Apply(cfg, "")

	var warnings, problems []string

	if err := cfg.CheckCredentials(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	for _, p := range problems {
		ui.PrintError("Error", p)
	}

	if len(problems) > 0 {
		return &exitError{code: 1}
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
