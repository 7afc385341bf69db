// Package config provides configuration loading and validation for the bot.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults used when neither the config file nor the environment set a value.
const (
	DefaultPort         = 3000
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultRankingURL   = "http://localhost:5000"
	DefaultFetchTimeout = "30s"
)

// Config represents the bot configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from the environment or defaults.
type Config struct {
	// Server
	Port          int    `json:"port,omitempty"`           // Webhook listener port
	WebhookSecret string `json:"webhook_secret,omitempty"` // Secret for X-Hub-Signature-256

	// GitHub
	GitHubToken          string `json:"github_token,omitempty"`            // Static token (PAT or installation token)
	GitHubAppID          string `json:"github_app_id,omitempty"`           // GitHub App ID, used with the private key
	GitHubPrivateKeyPath string `json:"github_private_key_path,omitempty"` // PEM private key of the GitHub App
	GitHubAPIURL         string `json:"github_api_url,omitempty"`          // REST API base URL

	// Collaborators
	RankingURL   string `json:"ranking_url,omitempty"`   // Localization backend base URL
	FetchTimeout string `json:"fetch_timeout,omitempty"` // Attachment fetch timeout, e.g. "30s"
	DatabaseURL  string `json:"database_url,omitempty"`  // PostgreSQL URL for the triage audit log

	Verbose bool `json:"verbose,omitempty"` // Development logging
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from environment variables. Unset variables
// leave the corresponding field empty.
func FromEnv() Config {
	cfg := Config{
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),
		GitHubToken:          os.Getenv("GITHUB_TOKEN"),
		GitHubAppID:          os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKeyPath: os.Getenv("GITHUB_PRIVATE_KEY_PATH"),
		GitHubAPIURL:         os.Getenv("GITHUB_API_URL"),
		RankingURL:           os.Getenv("RANKING_URL"),
		FetchTimeout:         os.Getenv("FETCH_TIMEOUT"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
	}

	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Port = port
	}
	if verbose, err := strconv.ParseBool(os.Getenv("VERBOSE")); err == nil {
		cfg.Verbose = verbose
	}

	return cfg
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:         DefaultPort,
		GitHubAPIURL: DefaultGitHubAPIURL,
		RankingURL:   DefaultRankingURL,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check that credentials are present; commands that
// post comments check that themselves.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	if (c.GitHubAppID == "") != (c.GitHubPrivateKeyPath == "") {
		return fmt.Errorf("config error: 'github_app_id' and 'github_private_key_path' must be set together")
	}

	if c.GitHubPrivateKeyPath != "" {
		if _, err := os.Stat(c.GitHubPrivateKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: private key file not found: %s", c.GitHubPrivateKeyPath)
		}
	}

	for name, raw := range map[string]string{"github_api_url": c.GitHubAPIURL, "ranking_url": c.RankingURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config error: '%s' is not an absolute URL: %s", name, raw)
		}
	}

	if c.FetchTimeout != "" {
		if _, err := c.FetchTimeoutDuration(); err != nil {
			return err
		}
	}

	return nil
}

// FetchTimeoutDuration parses FetchTimeout, falling back to DefaultFetchTimeout.
func (c *Config) FetchTimeoutDuration() (time.Duration, error) {
	raw := c.FetchTimeout
	if raw == "" {
		raw = DefaultFetchTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid 'fetch_timeout': %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config error: 'fetch_timeout' must be positive, got %s", raw)
	}
	return d, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Apply it in precedence order: file.MergeWithDefaults(env).MergeWithDefaults(Defaults()).
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.WebhookSecret == "" {
		result.WebhookSecret = defaults.WebhookSecret
	}
	if result.GitHubToken == "" {
		result.GitHubToken = defaults.GitHubToken
	}
	if result.GitHubAppID == "" {
		result.GitHubAppID = defaults.GitHubAppID
	}
	if result.GitHubPrivateKeyPath == "" {
		result.GitHubPrivateKeyPath = defaults.GitHubPrivateKeyPath
	}
	if result.GitHubAPIURL == "" {
		result.GitHubAPIURL = defaults.GitHubAPIURL
	}
	if result.RankingURL == "" {
		result.RankingURL = defaults.RankingURL
	}
	if result.FetchTimeout == "" {
		result.FetchTimeout = defaults.FetchTimeout
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: true from either side wins
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
