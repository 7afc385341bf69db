package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladybugml/ladybug-bot/internal/fetch"
	"github.com/ladybugml/ladybug-bot/internal/pipeline"
)

type fileFetcher struct {
	path string
	err  error
}

func (f fileFetcher) FetchJSON(context.Context, string) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func useFetcher(t *testing.T, f pipeline.Fetcher) {
	t.Helper()
	original := newFetcher
	newFetcher = func(*fetch.Options) pipeline.Fetcher { return f }
	t.Cleanup(func() { newFetcher = original })
}

func resetExtractFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		extractFile = ""
		extractOutput = ""
		extractJSON = false
	})
}

const issueWithTrace = "App crashes.\nhttps://github.com/o/r/files/17/trace.json\n"

func TestExtract_ValidTraceFromStdin(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{path: traceFixture("valid_trace.json")})
	extractOutput = filepath.Join(t.TempDir(), "out", "trace.json")

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader(issueWithTrace))

	require.NoError(t, runExtract(cmd, nil))
	assert.Contains(t, out.String(), "Outcome:  valid")
	assert.Contains(t, out.String(), "TRACE SUMMARY")
	assert.NotContains(t, out.String(), "Comment:")

	written, err := os.ReadFile(extractOutput)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(written, &doc))
	assert.Contains(t, doc, "steps")
}

func TestExtract_InvalidTraceJSON(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{path: traceFixture("missing_app.json")})
	extractJSON = true
	extractOutput = filepath.Join(t.TempDir(), "trace.json")

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader(issueWithTrace))
	require.NoError(t, runExtract(cmd, nil))

	var view map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "invalid", view["outcome"])
	assert.Equal(t, "https://github.com/o/r/files/17/trace.json", view["link"])
	assert.Equal(t, []any{"Root object must have required property 'app'"}, view["violations"])
	assert.NotContains(t, view, "trace")

	_, err := os.Stat(extractOutput)
	assert.True(t, os.IsNotExist(err), "invalid traces are not written")
}

func TestExtract_FetchFailedShowsComment(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{err: errors.New("connection reset")})

	bodyFile := filepath.Join(t.TempDir(), "issue.md")
	require.NoError(t, os.WriteFile(bodyFile, []byte(issueWithTrace), 0o644))
	extractFile = bodyFile

	cmd, out := testCommand()
	require.NoError(t, runExtract(cmd, nil))
	assert.Contains(t, out.String(), "Reason:   network error")
	assert.Contains(t, out.String(), "Comment:\nHello! Unfortunately, an error occurred while parsing the trace JSON file (network error).")
}

func TestExtract_NoAttachment(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{err: errors.New("must not be called")})
	extractJSON = true

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader("Nothing attached here."))
	require.NoError(t, runExtract(cmd, nil))
	assert.JSONEq(t, `{"outcome": "no_attachment"}`, out.String())
}

func TestExtract_VerboseReportsProgress(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{path: traceFixture("valid_trace.json")})
	cfg.Verbose = true
	t.Cleanup(func() { cfg.Verbose = false })

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader(issueWithTrace))
	require.NoError(t, runExtract(cmd, nil))

	for _, stage := range []string{"[extract_link]", "[fetch]", "[validate]", "[serialize]"} {
		assert.Contains(t, out.String(), stage)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	resetExtractFlags(t)
	extractFile = filepath.Join(t.TempDir(), "missing.md")

	cmd, _ := testCommand()
	assert.Error(t, runExtract(cmd, nil))
}

func TestExtract_ReportsIgnoredLinks(t *testing.T) {
	resetExtractFlags(t)
	useFetcher(t, fileFetcher{path: traceFixture("valid_trace.json")})
	extractJSON = true

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader(issueWithTrace + "Older run: https://github.com/o/r/files/3/old.json\n"))
	require.NoError(t, runExtract(cmd, nil))

	var view map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "https://github.com/o/r/files/17/trace.json", view["link"])
	assert.Equal(t, []any{"https://github.com/o/r/files/3/old.json"}, view["ignored_links"])
}
