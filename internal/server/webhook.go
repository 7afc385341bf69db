package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ladybugml/ladybug-bot/internal/github"
	"github.com/ladybugml/ladybug-bot/internal/server/middleware"
	"github.com/ladybugml/ladybug-bot/internal/triage"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

// EventHeader names the GitHub event type of a delivery.
const EventHeader = "X-GitHub-Event"

// triggers lists the event actions that start a triage run.
var triggers = map[string]map[string]bool{
	"issues":        {"opened": true, "edited": true},
	"issue_comment": {"created": true},
}

// installTriggers maps installation events to the action that gives the App
// access to new repositories.
var installTriggers = map[string]string{
	"installation":              "created",
	"installation_repositories": "added",
}

// handleWebhook accepts a GitHub delivery and starts triage in the
// background. GitHub expects an answer within ten seconds, which a fetch
// plus ranking cannot promise.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	eventName := r.Header.Get(EventHeader)
	deliveryID, _ := middleware.GetDeliveryID(r)
	logger := s.logger.With(zap.String("event", eventName), zap.String("delivery", deliveryID))

	if eventName == "ping" {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	if action, ok := installTriggers[eventName]; ok {
		s.handleInstallation(w, r, logger, action)
		return
	}

	actions, ok := triggers[eventName]
	if !ok {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var payload types.IssueEvent
	if err := decodeJSON(r.Body, &payload); err != nil {
		logger.Warn("rejected webhook payload", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	if !actions[payload.Action] || payload.FromBot() {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := payload.Validate(); err != nil {
		err = validationError(err)
		logger.Warn("rejected webhook payload", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	ev := triage.FromIssueEvent(eventName, &payload)
	ev.RunID = uuid.New()
	s.dispatch(ev)

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": ev.RunID.String(),
	})
}

// dispatch runs triage for ev detached from the request.
func (s *Server) dispatch(ev triage.Event) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.triageTimeout)
		defer cancel()

		rep := s.triager.Handle(ctx, ev)
		s.logger.Info("triage run finished",
			zap.String("run_id", rep.RunID.String()),
			zap.Stringer("issue", ev.Issue),
			zap.String("outcome", string(rep.Result.Outcome)),
			zap.Int("reporting_errors", len(rep.ReportingErrs)),
		)
	}()
}

// handleInstallation initializes every repository an installation event
// grants access to. Each repository is initialized in the background.
func (s *Server) handleInstallation(w http.ResponseWriter, r *http.Request, logger *zap.Logger, action string) {
	if s.initializer == nil {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var payload types.InstallationEvent
	if err := decodeJSON(r.Body, &payload); err != nil {
		logger.Warn("rejected webhook payload", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	if payload.Action != action {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := payload.Validate(); err != nil {
		err = validationError(err)
		logger.Warn("rejected webhook payload", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	repos := payload.Repos()
	for _, repo := range repos {
		owner, name := repo.OwnerAndName()
		s.dispatchInitialization(github.RepoRef{InstallationID: payload.Installation.ID, Owner: owner, Repo: name})
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"repositories": len(repos),
	})
}

// dispatchInitialization initializes repo detached from the request.
func (s *Server) dispatchInitialization(repo github.RepoRef) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.triageTimeout)
		defer cancel()

		if err := s.initializer.InitializeRepository(ctx, repo); err != nil {
			s.logger.Error("repository initialization failed", zap.Stringer("repository", repo), zap.Error(err))
		}
	}()
}

// handlePostMessage posts a progress update from the ranking backend as an
// issue comment. A comment_id of -1 means the update has no issue to go to.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req types.PostMessageRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	if req.CommentID == -1 {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := req.Validate(); err != nil {
		s.errorResponse(w, validationError(err))
		return
	}

	issue := github.IssueRef{Owner: req.Owner, Repo: req.Repo, Number: req.CommentID}
	if err := s.commenter.CreateComment(r.Context(), issue, req.Message); err != nil {
		s.logger.Error("failed to post progress message", zap.Stringer("issue", issue), zap.Error(err))
		s.errorResponse(w, &ErrCommentFailed{Cause: err})
		return
	}

	s.logger.Info("posted progress message", zap.Stringer("issue", issue))
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "posted"})
}

// decodeJSON decodes a request body into v.
func decodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(body, middleware.MaxPayloadBytes)).Decode(v); err != nil {
		return &ErrMalformedPayload{Cause: err}
	}
	return nil
}
