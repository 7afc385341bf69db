package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// TestMain runs the CLI tests with a clean environment for config variables.
func TestMain(m *testing.M) {
	for _, key := range []string{
		"PORT", "WEBHOOK_SECRET", "GITHUB_TOKEN", "GITHUB_APP_ID", "GITHUB_PRIVATE_KEY_PATH",
		"GITHUB_API_URL", "RANKING_URL", "FETCH_TIMEOUT", "DATABASE_URL", "VERBOSE",
	} {
		_ = os.Unsetenv(key)
	}
	os.Exit(m.Run())
}

// traceFixture returns the path of a trace fixture shared with the schemas package.
func traceFixture(name string) string {
	return filepath.Join("..", "..", "internal", "schemas", "testdata", name)
}

// testCommand returns a command whose output is captured.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}
