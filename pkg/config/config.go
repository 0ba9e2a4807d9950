package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "ighashtag/pkg/errors"
)

// Environment variables read at startup. The unprefixed names are the ones
// the hosted actor's own documentation uses.
const (
	EnvAPIToken        = "APIFY_TOKEN"
	EnvSessionID       = "SESSION_ID"
	EnvPrefixedToken   = "IGHASHTAG_APIFY_TOKEN"
	EnvPrefixedSession = "IGHASHTAG_SESSION_ID"
)

// Config holds all configuration options for a hashtag scrape
type Config struct {
	// Hosted actor platform access
	Apify ApifyConfig `yaml:"apify" json:"apify"`

	// What to scrape
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Run status polling
	Poll PollConfig `yaml:"poll" json:"poll"`

	// CSV artifact location
	Output OutputConfig `yaml:"output" json:"output"`

	// Per-request retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Outbound request budget
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ApifyConfig holds platform credentials and endpoints
type ApifyConfig struct {
	Token          string        `yaml:"token" json:"token"`
	SessionID      string        `yaml:"session_id" json:"session_id"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	ActorID        string        `yaml:"actor_id" json:"actor_id"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// ScrapeConfig holds the actor input
type ScrapeConfig struct {
	Hashtags     []string `yaml:"hashtags" json:"hashtags"`
	ResultsLimit int      `yaml:"results_limit" json:"results_limit"`
}

// PollConfig bounds the wait for a run to finish. Zero Timeout and zero
// MaxAttempts mean no bound.
type PollConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Directory       string `yaml:"directory" json:"directory"`
	FileName        string `yaml:"file_name" json:"file_name"`
	FileNamePattern string `yaml:"file_name_pattern" json:"file_name_pattern"`
}

// RetryConfig holds retry configuration. MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Apify: ApifyConfig{
			BaseURL:        "https://api.apify.com/v2",
			ActorID:        "apify~instagram-hashtag-scraper",
			RequestTimeout: 60 * time.Second,
		},
		Scrape: ScrapeConfig{
			Hashtags:     []string{"hyderabadfoodie", "indianfoodie"},
			ResultsLimit: 30,
		},
		Poll: PollConfig{
			Interval:    10 * time.Second,
			Timeout:     30 * time.Minute,
			MaxAttempts: 0,
		},
		Output: OutputConfig{
			Directory:       ".",
			FileName:        "",
			FileNamePattern: "hashtag_posts_{timestamp}.csv",
		},
		Retry: RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Credentials: the prefixed names win over the bare ones
	if token := os.Getenv(EnvAPIToken); token != "" {
		c.Apify.Token = token
	}
	if token := os.Getenv(EnvPrefixedToken); token != "" {
		c.Apify.Token = token
	}
	if sessionID := os.Getenv(EnvSessionID); sessionID != "" {
		c.Apify.SessionID = sessionID
	}
	if sessionID := os.Getenv(EnvPrefixedSession); sessionID != "" {
		c.Apify.SessionID = sessionID
	}
	if baseURL := os.Getenv("IGHASHTAG_BASE_URL"); baseURL != "" {
		c.Apify.BaseURL = baseURL
	}

	if hashtags := os.Getenv("IGHASHTAG_HASHTAGS"); hashtags != "" {
		c.Scrape.Hashtags = SplitHashtags(hashtags)
	}

	var errs []error
	if limit := os.Getenv("IGHASHTAG_RESULTS_LIMIT"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGHASHTAG_RESULTS_LIMIT: %w", err))
		} else {
			c.Scrape.ResultsLimit = val
		}
	}
	if interval := os.Getenv("IGHASHTAG_POLL_INTERVAL"); interval != "" {
		val, err := time.ParseDuration(interval)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGHASHTAG_POLL_INTERVAL: %w", err))
		} else {
			c.Poll.Interval = val
		}
	}
	if timeout := os.Getenv("IGHASHTAG_POLL_TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGHASHTAG_POLL_TIMEOUT: %w", err))
		} else {
			c.Poll.Timeout = val
		}
	}

	if outputDir := os.Getenv("IGHASHTAG_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if logLevel := os.Getenv("IGHASHTAG_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"ighashtag.yaml",
		".ighashtag.yaml",
		".ighashtag.yml",
		filepath.Join(home, ".config", "ighashtag", "config.yaml"),
		filepath.Join(home, ".config", "ighashtag", "config.yml"),
		filepath.Join(home, ".ighashtag.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by CheckCredentials.
func (c *Config) Validate() error {
	var errs []error

	if c.Apify.BaseURL == "" {
		errs = append(errs, errors.New("apify base URL is required"))
	}
	if c.Apify.ActorID == "" {
		errs = append(errs, errors.New("actor ID is required"))
	}
	if c.Apify.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if len(NormalizeHashtags(c.Scrape.Hashtags)) == 0 {
		errs = append(errs, errors.New("at least one hashtag is required"))
	}
	if c.Scrape.ResultsLimit <= 0 {
		errs = append(errs, errors.New("results limit must be positive"))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Poll.Timeout < 0 {
		errs = append(errs, errors.New("poll timeout cannot be negative"))
	}
	if c.Poll.MaxAttempts < 0 {
		errs = append(errs, errors.New("poll max attempts cannot be negative"))
	}

	if c.Output.FileName == "" && c.Output.FileNamePattern == "" {
		errs = append(errs, errors.New("file name pattern is required"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.MaxAttempts > 10 {
		errs = append(errs, errors.New("retry max attempts should not exceed 10"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// CheckCredentials reports a configuration error naming every missing credential
func (c *Config) CheckCredentials() error {
	var missing []string
	if c.Apify.Token == "" {
		missing = append(missing, EnvAPIToken)
	}
	if c.Apify.SessionID == "" {
		missing = append(missing, EnvSessionID)
	}
	if len(missing) == 0 {
		return nil
	}
	return errs.ConfigurationError(fmt.Sprintf("%s must be set as environment variables", strings.Join(missing, " and ")))
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WithoutCredentials returns a copy with the token and session id cleared,
// suitable for writing to disk
func (c *Config) WithoutCredentials() *Config {
	clean := *c
	clean.Scrape.Hashtags = append([]string(nil), c.Scrape.Hashtags...)
	clean.Apify.Token = ""
	clean.Apify.SessionID = ""
	return &clean
}

// Masked returns a copy with credentials shortened for display
func (c *Config) Masked() *Config {
	masked := *c
	masked.Scrape.Hashtags = append([]string(nil), c.Scrape.Hashtags...)
	masked.Apify.Token = MaskSecret(c.Apify.Token)
	masked.Apify.SessionID = MaskSecret(c.Apify.SessionID)
	return &masked
}

// MaskSecret keeps the first and last four characters of long secrets
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) > 8 {
		return secret[:4] + "..." + secret[len(secret)-4:]
	}
	return "***"
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if hashtags, ok := flags["hashtags"].([]string); ok && len(hashtags) > 0 {
		c.Scrape.Hashtags = hashtags
	}
	if limit, ok := flags["results-limit"].(int); ok && limit > 0 {
		c.Scrape.ResultsLimit = limit
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if fileName, ok := flags["file"].(string); ok && fileName != "" {
		c.Output.FileName = fileName
	}
	if interval, ok := flags["poll-interval"].(time.Duration); ok && interval > 0 {
		c.Poll.Interval = interval
	}
	if timeout, ok := flags["poll-timeout"].(time.Duration); ok && timeout >= 0 {
		c.Poll.Timeout = timeout
	}
	if attempts, ok := flags["max-retries"].(int); ok && attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// NormalizeHashtags trims blanks and leading '#' and drops empty entries
func NormalizeHashtags(hashtags []string) []string {
	normalized := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return normalized
}

// SplitHashtags splits a comma separated list into normalized hashtags
func SplitHashtags(list string) []string {
	return NormalizeHashtags(strings.Split(list, ","))
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ighashtag.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
