package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ladybugml/ladybug-bot/internal/attachment"
	"github.com/ladybugml/ladybug-bot/internal/fetch"
	"github.com/ladybugml/ladybug-bot/internal/observability"
	"github.com/ladybugml/ladybug-bot/internal/pipeline"
	"github.com/ladybugml/ladybug-bot/internal/report"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the attachment pipeline on an issue body",
	Long: `Finds the trace link in an issue body, fetches and validates it, and prints
the outcome together with the comment the bot would post. The body is read from
--file or standard input.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

var (
	extractFile   string
	extractOutput string
	extractJSON   bool
)

// newFetcher builds the attachment fetcher. Tests replace it.
var newFetcher = func(opts *fetch.Options) pipeline.Fetcher {
	return fetch.NewClient(opts)
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Path to a file holding the issue body (default: stdin)")
	extractCmd.Flags().StringVarP(&extractOutput, "out", "o", "", "Write the validated trace to this path")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(extractCmd)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func runExtract(cmd *cobra.Command, _ []string) error {
	body, err := readIssueBody(cmd.InOrStdin())
	if err != nil {
		return err
	}

	timeout, err := cfg.FetchTimeoutDuration()
	if err != nil {
		return err
	}
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = timeout

	opts := pipeline.Options{
		Fetcher: newFetcher(fetchOpts),
		Logger:  logger.Named("pipeline"),
	}
	if cfg.Verbose {
		stderr := cmd.ErrOrStderr()
		opts.OnProgress = func(e pipeline.ProgressEvent) {
			fmt.Fprintf(stderr, "[%s] %s\n", e.Stage, e.Message)
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	result := p.Run(cmdContext(cmd), body)

	// Only the first link is fetched; report the rest so the reporter can
	// tell which attachment was used.
	var ignored []string
	if links := attachment.ExtractLinks(body); len(links) > 1 {
		ignored = links[1:]
	}

	if extractOutput != "" && result.Outcome == pipeline.OutcomeValid {
		if err := writeFile(extractOutput, result.Document); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if extractJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(extractView(result, ignored))
	}

	printer := observability.NewPrinter(out)
	printer.PrintResult(result)
	for _, link := range ignored {
		fmt.Fprintf(out, "Ignored additional link: %s\n", link)
	}
	if trace := result.Trace(); trace != nil {
		if doc, err := types.DecodeTrace(trace); err == nil {
			printer.PrintTraceSummary(doc.Summary())
		}
	}
	if msg, ok := report.Feedback(result); ok {
		fmt.Fprintf(out, "\nComment:\n%s\n", msg)
	}
	return nil
}

// extractView is the JSON form of a result. Violations are rendered as the
// messages the bot posts rather than raw schema paths.
func extractView(result pipeline.Result, ignored []string) map[string]any {
	view := map[string]any{"outcome": result.Outcome}
	if result.Link != "" {
		view["link"] = result.Link
	}
	if result.Reason != "" {
		view["reason"] = result.Reason
	}
	if len(ignored) > 0 {
		view["ignored_links"] = ignored
	}
	if messages := result.Messages(); len(messages) > 0 {
		view["violations"] = messages
	}
	if trace := result.Trace(); trace != nil {
		view["trace"] = trace
	}
	return view
}

func readIssueBody(stdin io.Reader) (string, error) {
	if extractFile == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read issue body from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(extractFile)
	if err != nil {
		return "", fmt.Errorf("failed to read issue body file %s: %w", extractFile, err)
	}
	return string(data), nil
}

// writeFile writes data to path, creating the parent directory.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
