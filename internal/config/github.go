// Package config provides GitHub App configuration functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// AppConfig holds the credentials of a GitHub App.
type AppConfig struct {
	AppID      string
	PrivateKey []byte
}

// NewAppConfig reads the GitHub App private key from keyPath.
func NewAppConfig(appID, keyPath string) (*AppConfig, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("GitHub App private key path is required but not set")
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub App private key: %w", err)
	}

	config := &AppConfig{
		AppID:      appID,
		PrivateKey: key,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *AppConfig) normalize() error {
	if c.AppID == "" {
		return fmt.Errorf("GitHub App ID cannot be empty")
	}
	if _, err := strconv.ParseInt(c.AppID, 10, 64); err != nil {
		return fmt.Errorf("GitHub App ID must be numeric, got: %s", c.AppID)
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("GitHub App private key is empty")
	}
	return nil
}
