package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ladybugml/ladybug-bot/internal/observability"
	"github.com/ladybugml/ladybug-bot/internal/schemas"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

var checkTraceSummary bool

var checkTraceCmd = &cobra.Command{
	Use:   "check-trace FILE...",
	Short: "Validate trace files against the trace schema",
	Long: `Validates one or more local trace JSON files and prints the same messages
the bot would post on an issue. Exits non-zero if any file is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckTrace,
}

func init() {
	checkTraceCmd.Flags().BoolVar(&checkTraceSummary, "summary", false, "Print a summary of each valid trace")
	rootCmd.AddCommand(checkTraceCmd)
}

// traceCheck is the validation result for one file.
type traceCheck struct {
	path    string
	outcome schemas.Outcome
	summary *types.TraceSummary
	err     error
}

// errInvalidTraces is returned when at least one file failed validation.
var errInvalidTraces = errors.New("one or more traces are invalid")

func runCheckTrace(cmd *cobra.Command, args []string) error {
	schema, err := schemas.TraceSchema()
	if err != nil {
		return err
	}

	checks := make([]traceCheck, len(args))
	g, ctx := errgroup.WithContext(cmdContext(cmd))
	g.SetLimit(runtime.NumCPU())
	for i, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			checks[i] = checkTraceFile(schema, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	failed := false
	for _, c := range checks {
		if !reportCheck(out, printer, c) {
			failed = true
		}
	}

	if failed {
		return errInvalidTraces
	}
	return nil
}

func checkTraceFile(schema *schemas.Schema, path string) traceCheck {
	c := traceCheck{path: path}

	if err := schema.ValidateFile(path); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			c.outcome = schemas.Outcome{Violations: verr.Violations}
		} else {
			c.err = err
		}
		return c
	}

	if checkTraceSummary {
		data, err := os.ReadFile(path)
		if err != nil {
			c.err = fmt.Errorf("failed to read %s: %w", path, err)
			return c
		}
		if trace, err := types.DecodeTrace(data); err == nil {
			summary := trace.Summary()
			c.summary = &summary
		}
	}
	return c
}

// reportCheck prints one result and reports whether the file passed.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func reportCheck(out io.Writer, printer *observability.Printer, c traceCheck) bool {
	switch {
	case c.err != nil:
		fmt.Fprintf(out, "FAIL %s: %v\n", c.path, c.err)
		return false
	case !c.outcome.Valid():
		fmt.Fprintf(out, "FAIL %s\n", c.path)
		for _, msg := range c.outcome.Messages() {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
		return false
	default:
		fmt.Fprintf(out, "PASS %s\n", c.path)
		if c.summary != nil {
			printer.PrintTraceSummary(*c.summary)
		}
		return true
	}
}

// cmdContext returns the command's context, which is nil when a command is
// invoked directly rather than through Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
