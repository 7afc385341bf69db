package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TriageRun is one audited triage of an issue event.
type TriageRun struct {
	ID          uuid.UUID `json:"id"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	IssueNumber int       `json:"issue_number"`
	Event       string    `json:"event"`
	Outcome     string    `json:"outcome"`
	Link        string    `json:"link,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Violations  []string  `json:"violations"`
	RankedFiles int       `json:"ranked_files"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordTriageRun inserts run. A zero ID is replaced with a new UUID.
func (db *DB) RecordTriageRun(ctx context.Context, run *TriageRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	violations := run.Violations
	if violations == nil {
		violations = []string{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("failed to marshal violations: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO triage_runs (id, owner, repo, issue_number, event, outcome, link, reason, violations, ranked_files, error)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, NULLIF($11, ''))
		 RETURNING created_at`,
		run.ID, run.Owner, run.Repo, run.IssueNumber, run.Event, run.Outcome,
		run.Link, run.Reason, violationsJSON, run.RankedFiles, run.Error,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record triage run: %w", err)
	}
	return nil
}

// ListTriageRuns returns the most recent runs for an issue, newest first.
func (db *DB) ListTriageRuns(ctx context.Context, owner, repo string, issueNumber, limit int) ([]TriageRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, owner, repo, issue_number, event, outcome,
		        COALESCE(link, ''), COALESCE(reason, ''), violations, ranked_files, COALESCE(error, ''), created_at
		 FROM triage_runs
		 WHERE owner = $1 AND repo = $2 AND issue_number = $3
		 ORDER BY created_at DESC
		 LIMIT $4`,
		owner, repo, issueNumber, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list triage runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TriageRun, error) {
		var run TriageRun
		var violationsJSON []byte
		if err := row.Scan(&run.ID, &run.Owner, &run.Repo, &run.IssueNumber, &run.Event, &run.Outcome,
			&run.Link, &run.Reason, &violationsJSON, &run.RankedFiles, &run.Error, &run.CreatedAt); err != nil {
			return run, err
		}
		if err := json.Unmarshal(violationsJSON, &run.Violations); err != nil {
			return run, fmt.Errorf("failed to decode violations: %w", err)
		}
		return run, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan triage runs: %w", err)
	}
	return runs, nil
}
