// Package triage runs the attachment pipeline for an issue event and reports
// the outcome back to the issue.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ladybugml/ladybug-bot/internal/db"
	"github.com/ladybugml/ladybug-bot/internal/github"
	"github.com/ladybugml/ladybug-bot/internal/pipeline"
	"github.com/ladybugml/ladybug-bot/internal/ranking"
	"github.com/ladybugml/ladybug-bot/internal/report"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

// Commenter posts comments to an issue.
type Commenter interface {
	CreateComment(ctx context.Context, issue github.IssueRef, body string) error
}

// Ranker ranks source files for an issue.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) (*types.Ranking, error)
}

// Repositories reads repository metadata from the code host.
type Repositories interface {
	Repository(ctx context.Context, repo github.RepoRef) (*github.RepositoryInfo, error)
	HeadCommit(ctx context.Context, repo github.RepoRef, branch string) (string, error)
}

// Initializer prepares the ranking backend for a repository.
type Initializer interface {
	Initialize(ctx context.Context, repo ranking.Repository, commentID int) error
}

// Recorder persists an audit entry for a triage run.
type Recorder interface {
	RecordTriageRun(ctx context.Context, run *db.TriageRun) error
}

// Event is an issue event reduced to what triage needs.
type Event struct {
	// RunID identifies the run in logs and the audit log. A zero RunID is
	// replaced with a fresh one.
	RunID uuid.UUID
	// Name is "<event>.<action>", e.g. "issues.opened".
	Name  string
	Issue github.IssueRef
	// Text is scanned for the attachment link: the issue body, or the
	// comment body for comment events.
	Text string
	// IssueText is the report sent to the ranking backend.
	IssueText  string
	Repository ranking.Repository
}

// FromIssueEvent converts a webhook payload into an Event.
func FromIssueEvent(eventName string, e *types.IssueEvent) Event {
	ev := Event{
		Name: eventName + "." + e.Action,
		Issue: github.IssueRef{
			Owner:  e.Repository.Owner.Login,
			Repo:   e.Repository.Name,
			Number: e.Issue.Number,
		},
		Text:      e.Issue.Body,
		IssueText: strings.TrimSpace(e.Issue.Title + "\n\n" + e.Issue.Body),
		Repository: ranking.Repository{
			RepoURL:       e.Repository.HTMLURL,
			Owner:         e.Repository.Owner.Login,
			RepoName:      e.Repository.Name,
			DefaultBranch: e.Repository.DefaultBranch,
		},
	}
	if e.Installation != nil {
		ev.Issue.InstallationID = e.Installation.ID
	}
	if e.Comment != nil {
		ev.Text = e.Comment.Body
	}
	return ev
}

// Report is everything that happened during one triage run. Reporting
// failures are collected separately and never change Result.
type Report struct {
	RunID         uuid.UUID
	Result        pipeline.Result
	Ranking       *types.Ranking
	RankingErr    error
	ReportingErrs []error
}

// Options configures a Handler. Everything but Pipeline and Commenter is
// optional. Without Repositories, ranking requests go out with the
// repository details the event carried.
type Options struct {
	Pipeline     *pipeline.Pipeline
	Commenter    Commenter
	Ranker       Ranker
	Repositories Repositories
	Initializer  Initializer
	Recorder     Recorder
	Logger       *zap.Logger
}

// Handler triages issue events.
type Handler struct {
	pipeline    *pipeline.Pipeline
	commenter   Commenter
	ranker      Ranker
	repos       Repositories
	initializer Initializer
	recorder    Recorder
	logger      *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pipeline:    opts.Pipeline,
		commenter:   opts.Commenter,
		ranker:      opts.Ranker,
		repos:       opts.Repositories,
		initializer: opts.Initializer,
		recorder:    opts.Recorder,
		logger:      logger,
	}
}

// Handle runs the pipeline for ev, posts feedback, requests a ranking and
// posts it.
func (h *Handler) Handle(ctx context.Context, ev Event) Report {
	rep := Report{RunID: ev.RunID}
	if rep.RunID == uuid.Nil {
		rep.RunID = uuid.New()
	}
	logger := h.logger.With(
		zap.String("run_id", rep.RunID.String()),
		zap.String("event", ev.Name),
		zap.Stringer("issue", ev.Issue),
	)

	rep.Result = h.pipeline.Run(ctx, ev.Text)
	logger.Info("attachment pipeline finished", zap.String("outcome", string(rep.Result.Outcome)))

	if msg, ok := report.Feedback(rep.Result); ok {
		h.post(ctx, logger, ev.Issue, msg, &rep)
	}

	if h.ranker != nil {
		repo, err := h.resolveRepository(ctx, ev.Issue.RepoRef(), ev.Repository)
		if err == nil {
			rep.Ranking, err = h.ranker.Rank(ctx, ranking.Request{
				Repository: repo,
				Issue:      ev.IssueText,
				Trace:      string(rep.Result.Trace()),
				CommentID:  ev.Issue.Number,
			})
		}
		rep.RankingErr = err
		if rep.RankingErr != nil {
			logger.Error("ranking failed", zap.Error(rep.RankingErr))
			h.post(ctx, logger, ev.Issue, report.ErrorReply(report.RankingFailed), &rep)
		} else {
			logger.Info("ranking received", zap.Int("ranked_files", len(rep.Ranking.RankedFiles)))
			h.post(ctx, logger, ev.Issue, report.RankingTable(rep.Ranking), &rep)
		}
	}

	h.record(ctx, logger, ev, &rep)
	return rep
}

// InitializeRepository asks the ranking backend to index a newly installed
// repository at the head of its default branch.
func (h *Handler) InitializeRepository(ctx context.Context, ref github.RepoRef) error {
	if h.initializer == nil || h.repos == nil {
		return errors.New("repository initialization is not configured")
	}
	logger := h.logger.With(zap.Stringer("repository", ref))

	repo, err := h.resolveRepository(ctx, ref, ranking.Repository{})
	if err != nil {
		logger.Error("failed to resolve repository", zap.Error(err))
		return err
	}

	if err := h.initializer.Initialize(ctx, repo, ranking.NoComment); err != nil {
		logger.Error("repository initialization failed", zap.Error(err))
		return fmt.Errorf("failed to initialize %s: %w", ref, err)
	}
	logger.Info("repository initialized", zap.String("commit", repo.LatestCommitSHA))
	return nil
}

// resolveRepository completes repo with what the backend requires: owner,
// name, URL, default branch and the SHA of the branch head.
func (h *Handler) resolveRepository(ctx context.Context, ref github.RepoRef, repo ranking.Repository) (ranking.Repository, error) {
	if repo.Owner == "" {
		repo.Owner = ref.Owner
	}
	if repo.RepoName == "" {
		repo.RepoName = ref.Repo
	}
	if h.repos == nil || repo.LatestCommitSHA != "" {
		return repo, nil
	}

	if repo.RepoURL == "" || repo.DefaultBranch == "" {
		info, err := h.repos.Repository(ctx, ref)
		if err != nil {
			return repo, fmt.Errorf("failed to look up %s: %w", ref, err)
		}
		if repo.RepoURL == "" {
			repo.RepoURL = info.HTMLURL
		}
		if repo.DefaultBranch == "" {
			repo.DefaultBranch = info.DefaultBranch
		}
	}

	sha, err := h.repos.HeadCommit(ctx, ref, repo.DefaultBranch)
	if err != nil {
		return repo, fmt.Errorf("failed to resolve head of %s@%s: %w", ref, repo.DefaultBranch, err)
	}
	repo.LatestCommitSHA = sha
	return repo, nil
}

// post publishes body. A failure is logged and followed by one attempt to
// tell the reporter that posting failed.
func (h *Handler) post(ctx context.Context, logger *zap.Logger, issue github.IssueRef, body string, rep *Report) {
	err := h.commenter.CreateComment(ctx, issue, body)
	if err == nil {
		return
	}
	logger.Error("could not create issue comment", zap.Error(err))
	rep.ReportingErrs = append(rep.ReportingErrs, err)

	if err := h.commenter.CreateComment(ctx, issue, report.ErrorReply(report.PostingFailed)); err != nil {
		logger.Error("failed to post error message to issue", zap.Error(err))
		rep.ReportingErrs = append(rep.ReportingErrs, err)
	}
}

func (h *Handler) record(ctx context.Context, logger *zap.Logger, ev Event, rep *Report) {
	if h.recorder == nil {
		return
	}

	run := &db.TriageRun{
		ID:          rep.RunID,
		Owner:       ev.Issue.Owner,
		Repo:        ev.Issue.Repo,
		IssueNumber: ev.Issue.Number,
		Event:       ev.Name,
		Outcome:     string(rep.Result.Outcome),
		Link:        rep.Result.Link,
		Reason:      rep.Result.Reason,
		Violations:  rep.Result.Messages(),
	}
	if rep.Ranking != nil {
		run.RankedFiles = len(rep.Ranking.RankedFiles)
	}
	if err := errors.Join(append([]error{rep.RankingErr}, rep.ReportingErrs...)...); err != nil {
		run.Error = err.Error()
	}

	if err := h.recorder.RecordTriageRun(ctx, run); err != nil {
		logger.Error("failed to record triage run", zap.Error(fmt.Errorf("audit log: %w", err)))
	}
}
