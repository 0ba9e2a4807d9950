package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ighashtag/pkg/auth"
	"ighashtag/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token and session id",
	Long: `Manage stored credentials.

Credentials are looked up in:
  - Environment variables (APIFY_TOKEN, SESSION_ID or their IGHASHTAG_ forms)
  - System keychain, per profile

An exported variable always wins over a stored value. Never share either secret.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store the API token and session id in the system keychain",
	Example: `  # Store the default profile
  ighashtag auth login

  # Store a second profile
  ighashtag auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status [profile]",
	Short: "Show where credentials are found",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthStatus,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where the API token and session id come from",
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCredentialGuide(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(guideCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager := newCredentialManager()
	name := profileArg(args)
	reader := bufio.NewReader(cmd.InOrStdin())

	auth.ShowCredentialGuide(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "\nStoring credentials for profile '%s' (input is hidden)\n\n", name)

	token, err := promptSecret(cmd.OutOrStdout(), reader, "API token: ")
	if err != nil {
		ui.PrintError("Failed to read API token", err)
		return &exitError{code: 1, err: err}
	}
	sessionID, err := promptSecret(cmd.OutOrStdout(), reader, "sessionid cookie value: ")
	if err != nil {
		ui.PrintError("Failed to read session id", err)
		return &exitError{code: 1, err: err}
	}

	creds := &auth.Credentials{Profile: name, APIToken: token, SessionID: sessionID}
	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err)
		return &exitError{code: 1, err: err}
	}

	masked := auth.Sanitize(creds)
	ui.PrintSuccess("Credentials stored for profile: " + name)
	ui.PrintInfo("API token", masked.APIToken)
	ui.PrintInfo("Session id", masked.SessionID)
	return nil
}

// promptSecret reads a line without echo when stdin is a terminal, and a
// plain line otherwise
func promptSecret(w io.Writer, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(w, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	name := profileArg(args)
	if err := newCredentialManager().Delete(name); err != nil {
		ui.PrintError("Failed to remove credentials", err)
		return &exitError{code: 1, err: err}
	}
	ui.PrintSuccess("Credentials removed for profile: " + name)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	name := profileArg(args)
	sources := newCredentialManager().Sources(name)

	ui.PrintHighlight("Credentials for profile '" + name + "'")
	if len(sources) == 0 {
		ui.PrintWarning("No credentials found")
		ui.Println("Run 'ighashtag auth login' or export APIFY_TOKEN and SESSION_ID.")
		return nil
	}

	for _, store := range []string{"environment", "keyring"} {
		creds, ok := sources[store]
		if !ok {
			continue
		}
		ui.PrintInfo(store+" API token", orMissing(creds.APIToken))
		ui.PrintInfo(store+" session id", orMissing(creds.SessionID))
	}
	return nil
}

func orMissing(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
