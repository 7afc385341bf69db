package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTrace_Valid(t *testing.T) {
	cmd, out := testCommand()

	err := runCheckTrace(cmd, []string{traceFixture("valid_trace.json")})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "PASS ")
	assert.NotContains(t, out.String(), "TRACE SUMMARY")
}

func TestCheckTrace_Summary(t *testing.T) {
	checkTraceSummary = true
	t.Cleanup(func() { checkTraceSummary = false })
	cmd, out := testCommand()

	require.NoError(t, runCheckTrace(cmd, []string{traceFixture("valid_trace.json")}))
	assert.Contains(t, out.String(), "TRACE SUMMARY")
	assert.Contains(t, out.String(), "com.example 1.0.3")
}

func TestCheckTrace_InvalidFilesReportedInOrder(t *testing.T) {
	cmd, out := testCommand()

	err := runCheckTrace(cmd, []string{
		traceFixture("bad_steps.json"),
		traceFixture("valid_trace.json"),
		traceFixture("missing_app.json"),
	})
	require.ErrorIs(t, err, errInvalidTraces)

	assert.Equal(t,
		"FAIL "+traceFixture("bad_steps.json")+"\n"+
			"  - Field \"app\" must have required property 'apkPath'\n"+
			"  - Field \"executionNum\" must be integer\n"+
			"  - Field \"steps[1]\" must have required property 'action'\n"+
			"  - Field \"steps[2].action\" must be integer\n"+
			"PASS "+traceFixture("valid_trace.json")+"\n"+
			"FAIL "+traceFixture("missing_app.json")+"\n"+
			"  - Root object must have required property 'app'\n",
		out.String())
}

func TestCheckTrace_UnreadableFile(t *testing.T) {
	cmd, out := testCommand()

	err := runCheckTrace(cmd, []string{filepath.Join(t.TempDir(), "nope.json")})
	require.ErrorIs(t, err, errInvalidTraces)
	assert.Contains(t, out.String(), "failed to read")
}

func TestCheckTrace_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app": `), 0o600))
	cmd, out := testCommand()

	err := runCheckTrace(cmd, []string{path})
	require.ErrorIs(t, err, errInvalidTraces)
	assert.Contains(t, out.String(), "FAIL "+path+": failed to parse")
}
