package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ladybugml/ladybug-bot/internal/observability"
	"github.com/ladybugml/ladybug-bot/internal/report"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

var rankTableCmd = &cobra.Command{
	Use:   "rank-table",
	Short: "Render a backend ranking as the issue comment",
	Long: `Reads a ranking response from the localization backend
({"message": ..., "ranked_files": [[path, score], ...]}) and prints the markdown
comment the bot would post.`,
	Args: cobra.NoArgs,
	RunE: runRankTable,
}

var rankTableInput string

func init() {
	rankTableCmd.Flags().StringVarP(&rankTableInput, "in", "i", "", "Path to the ranking JSON (default: stdin)")
	rootCmd.AddCommand(rankTableCmd)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func runRankTable(cmd *cobra.Command, _ []string) error {
	var data []byte
	var err error
	if rankTableInput == "" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(rankTableInput)
	}
	if err != nil {
		return fmt.Errorf("failed to read ranking: %w", err)
	}

	var ranking types.Ranking
	if err := json.Unmarshal(data, &ranking); err != nil {
		return fmt.Errorf("failed to unmarshal ranking JSON: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintRanking(&ranking)
	}
	fmt.Fprintln(out, report.RankingTable(&ranking))
	return nil
}
