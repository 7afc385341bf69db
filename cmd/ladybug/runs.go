package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ladybugml/ladybug-bot/internal/db"
	"github.com/ladybugml/ladybug-bot/internal/observability"
)

var runsCmd = &cobra.Command{
	Use:   "runs OWNER/REPO ISSUE",
	Short: "Show audited triage runs for an issue",
	Long: `Lists the triage runs recorded in the audit log for one issue, newest first.
Requires DATABASE_URL (or database_url in the config file).`,
	Args: cobra.ExactArgs(2),
	RunE: runRuns,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	owner, repo, err := splitRepo(args[0])
	if err != nil {
		return err
	}
	issue, err := strconv.Atoi(args[1])
	if err != nil || issue <= 0 {
		return fmt.Errorf("invalid issue number: %s", args[1])
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to read the triage audit log")
	}

	ctx := cmdContext(cmd)
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListTriageRuns(ctx, owner, repo, issue, runsLimit)
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintTriageRuns(fmt.Sprintf("%s/%s#%d", owner, repo, issue), runs)
	return nil
}

func splitRepo(s string) (string, string, error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository must be OWNER/REPO, got %q", s)
	}
	return owner, repo, nil
}
