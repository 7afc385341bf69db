// Package report renders the comments the bot posts back to an issue.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ladybugml/ladybug-bot/internal/pipeline"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

// IssuesURL is where users are pointed to report problems with the bot.
const IssuesURL = "https://github.com/LadyBugML/ladybug/issues/new"

// withoutTrace is appended to every message about a rejected attachment.
const withoutTrace = "Rankings will be calculated without GUI data."

// Canned failure descriptions passed to ErrorReply.
const (
	PostingFailed = "an error occurred while posting the analysis results."
	RankingFailed = "an error occurred while ranking files for this issue."
)

// ErrorReply wraps an error description in the bot's apology template.
func ErrorReply(message string) string {
	return fmt.Sprintf("Hello! Unfortunately, %s Please try again later or contact support if the issue persists.", message)
}

// Feedback returns the comment to post for a pipeline result. The second
// return value is false when nothing should be posted: a missing attachment
// is the common case and a valid trace is handed to ranking silently.
func Feedback(result pipeline.Result) (string, bool) {
	switch result.Outcome {
	case pipeline.OutcomeFetchFailed:
		reason := result.Reason
		if reason == "" {
			reason = pipeline.ReasonNetwork
		}
		return ErrorReply(fmt.Sprintf(
			"an error occurred while parsing the trace JSON file (%s). %s", reason, withoutTrace)), true
	case pipeline.OutcomeInvalid:
		var sb strings.Builder
		sb.WriteString("the uploaded JSON file has the following issues:\n")
		for _, msg := range result.Messages() {
			sb.WriteString("- " + msg + "\n")
		}
		sb.WriteString("\n" + withoutTrace)
		return ErrorReply(sb.String()), true
	default:
		return "", false
	}
}

// EmptyRanking is posted when the backend could not rank any file.
func EmptyRanking() string {
	return "Hello! LadyBug was unable to find any files that might contain the bug mentioned in this issue.\n\n" +
		"If you think this is a problem or bug, please take the time to create a bug report here: " +
		"[LadyBug Issues](" + IssuesURL + ")"
}

// RankingTable renders the ranked files as a markdown table, most likely
// file first. An empty ranking renders EmptyRanking.
func RankingTable(ranking *types.Ranking) string {
	if ranking == nil || len(ranking.RankedFiles) == 0 {
		return EmptyRanking()
	}

	var sb strings.Builder
	sb.WriteString("Hello! LadyBug was able to find and rank files that may contain the bug mentioned in this issue. \n")
	sb.WriteString("## File ranking in order of most likely to contain the bug to least likely:\n")
	sb.WriteString("\n| Rank | File Path | Score |\n")
	sb.WriteString("|------|-----------|-------|\n")
	for i, file := range ranking.RankedFiles {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", i+1, escapeCell(file.Path), formatScore(file.Score)))
	}
	sb.WriteString("\n\nPlease take the time to read through each of these files. \n")
	sb.WriteString("If you have any problems with this response, or if you think an error occurred, " +
		"please take the time to create an issue here: [LadyBug Issues](" + IssuesURL + "). \n")
	sb.WriteString("Happy coding!")
	return sb.String()
}

// formatScore prints the shortest representation that round-trips.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// escapeCell keeps a pipe in a path from splitting the table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
