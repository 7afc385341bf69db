package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 8080,
		"webhook_secret": "s3cret",
		"ranking_url": "http://backend:5000",
		"fetch_timeout": "5s",
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, "http://backend:5000", cfg.RankingURL)
	assert.Equal(t, "5s", cfg.FetchTimeout)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("WEBHOOK_SECRET", "hook")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("RANKING_URL", "http://rank:5000")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("VERBOSE", "true")

	cfg := FromEnv()
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "hook", cfg.WebhookSecret)
	assert.Equal(t, "ghp_x", cfg.GitHubToken)
	assert.Equal(t, "http://rank:5000", cfg.RankingURL)
	assert.Equal(t, "10s", cfg.FetchTimeout)
	assert.True(t, cfg.Verbose)
}

func TestFromEnv_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("VERBOSE", "maybe")

	cfg := FromEnv()
	assert.Equal(t, 0, cfg.Port)
	assert.False(t, cfg.Verbose)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "port out of range", cfg: Config{Port: 70000}, want: "'port'"},
		{name: "app id without key", cfg: Config{GitHubAppID: "1"}, want: "must be set together"},
		{name: "key file missing", cfg: Config{GitHubAppID: "1", GitHubPrivateKeyPath: "/nonexistent/key.pem"}, want: "private key file not found"},
		{name: "relative ranking url", cfg: Config{RankingURL: "backend:5000/x"}, want: "'ranking_url'"},
		{name: "bad timeout", cfg: Config{FetchTimeout: "soon"}, want: "invalid 'fetch_timeout'"},
		{name: "negative timeout", cfg: Config{FetchTimeout: "-1s"}, want: "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFetchTimeoutDuration_Default(t *testing.T) {
	cfg := Config{}
	d, err := cfg.FetchTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestMergeWithDefaults(t *testing.T) {
	fileCfg := Config{Port: 9000, RankingURL: "http://file:5000"}
	envCfg := Config{Port: 4000, GitHubToken: "env-token", RankingURL: "http://env:5000", Verbose: true}

	merged := fileCfg.MergeWithDefaults(envCfg)
	merged = merged.MergeWithDefaults(Defaults())

	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "http://file:5000", merged.RankingURL)
	assert.Equal(t, "env-token", merged.GitHubToken)
	assert.Equal(t, DefaultGitHubAPIURL, merged.GitHubAPIURL)
	assert.Equal(t, DefaultFetchTimeout, merged.FetchTimeout)
	assert.True(t, merged.Verbose)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Port: 1234}
	merged := cfg.MergeWithDefaults(Config{})
	assert.Equal(t, cfg, merged)
}
