package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ladybugml/ladybug-bot/internal/config"
)

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 4000, "ranking_url": "http://file:5000"}`), 0o644))

	t.Setenv("PORT", "5000")
	t.Setenv("RANKING_URL", "http://env:5000")
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	configPath = path
	t.Cleanup(func() { configPath = "" })

	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4000, got.Port)
	assert.Equal(t, "http://file:5000", got.RankingURL)
	assert.Equal(t, "ghp_env", got.GitHubToken)
	assert.Equal(t, config.DefaultGitHubAPIURL, got.GitHubAPIURL)
	assert.Equal(t, config.DefaultFetchTimeout, got.FetchTimeout)
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), got)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { configPath = "" })

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_VerboseFlag(t *testing.T) {
	verbose = true
	t.Cleanup(func() { verbose = false })

	got, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, got.Verbose)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger(true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "check-trace", "extract", "rank-table", "runs"} {
		assert.True(t, names[want], want)
	}
}
