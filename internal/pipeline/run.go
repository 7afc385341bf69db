// Package pipeline extracts, fetches and validates the trace attachment of an issue.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ladybugml/ladybug-bot/internal/attachment"
	"github.com/ladybugml/ladybug-bot/internal/fetch"
	"github.com/ladybugml/ladybug-bot/internal/schemas"
)

// Outcome names the terminal state of a pipeline run.
type Outcome string

const (
	OutcomeNoAttachment Outcome = "no_attachment"
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeValid        Outcome = "valid"
)

// Fetch failure reasons.
const (
	ReasonNetwork = "network error"
	ReasonParse   = "parse error"
)

// Stage names reported through ProgressCallback.
const (
	StageExtractLink = "extract_link"
	StageFetch       = "fetch"
	StageValidate    = "validate"
	StageSerialize   = "serialize"
)

// Result is the outcome of one pipeline run. Only the fields relevant to
// Outcome are set.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// Link is the attachment link that was fetched.
	Link string `json:"link,omitempty"`
	// Reason is ReasonNetwork or ReasonParse for OutcomeFetchFailed.
	Reason string `json:"reason,omitempty"`
	// Detail is the underlying fetch error, for logs only.
	Detail     string              `json:"detail,omitempty"`
	Violations []schemas.Violation `json:"violations,omitempty"`
	// Document is the canonical serialization of a valid trace.
	Document json.RawMessage `json:"document,omitempty"`
}

// Messages returns the rendered violations of an invalid result.
func (r Result) Messages() []string {
	return schemas.Outcome{Violations: r.Violations}.Messages()
}

// Trace returns the serialized trace for a valid result and nil otherwise.
func (r Result) Trace() json.RawMessage {
	if r.Outcome != OutcomeValid {
		return nil
	}
	return r.Document
}

// ProgressEvent reports that a stage finished.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProgressCallback is called when a stage finishes.
type ProgressCallback func(event ProgressEvent)

// Fetcher retrieves and decodes a JSON document.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string) (any, error)
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	Fetcher    Fetcher
	Schema     *schemas.Schema
	Logger     *zap.Logger
	OnProgress ProgressCallback
}

// Pipeline runs extraction, fetch, validation and serialization in sequence.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	fetcher    Fetcher
	schema     *schemas.Schema
	logger     *zap.Logger
	onProgress ProgressCallback
}

// New creates a Pipeline. It fails only if the trace schema cannot be compiled.
func New(opts Options) (*Pipeline, error) {
	p := &Pipeline{
		fetcher:    opts.Fetcher,
		schema:     opts.Schema,
		logger:     opts.Logger,
		onProgress: opts.OnProgress,
	}

	if p.schema == nil {
		schema, err := schemas.TraceSchema()
		if err != nil {
			return nil, fmt.Errorf("failed to compile trace schema: %w", err)
		}
		p.schema = schema
	}
	if p.fetcher == nil {
		p.fetcher = fetch.NewClient(nil)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	return p, nil
}

// Run processes one issue body. Expected conditions (no attachment, fetch
// failure, invalid document) are reported through Result, never as errors.
func (p *Pipeline) Run(ctx context.Context, issueBody string) Result {
	// Stage 1: find the attachment link
	link, ok := attachment.ExtractLink(issueBody)
	if !ok {
		p.logger.Info("no JSON attachment found")
		p.emit(StageExtractLink, "no attachment link")
		return Result{Outcome: OutcomeNoAttachment}
	}
	logger := p.logger.With(zap.String("link", link))
	logger.Info("found JSON attachment")
	p.emit(StageExtractLink, link)

	// Stage 2: fetch and parse
	value, err := p.fetcher.FetchJSON(ctx, link)
	if err != nil {
		reason := failureReason(err)
		logger.Warn("failed to fetch trace attachment",
			zap.String("reason", reason),
			zap.Bool("timeout", isTimeout(err)),
			zap.Error(err),
		)
		p.emit(StageFetch, reason)
		return Result{
			Outcome: OutcomeFetchFailed,
			Link:    link,
			Reason:  reason,
			Detail:  err.Error(),
		}
	}
	p.emit(StageFetch, "attachment retrieved")

	// Stage 3: validate
	outcome := p.schema.Validate(value)
	if !outcome.Valid() {
		logger.Warn("trace attachment failed schema validation",
			zap.Int("violations", len(outcome.Violations)),
			zap.Strings("messages", outcome.Messages()))
		p.emit(StageValidate, fmt.Sprintf("%d violation(s)", len(outcome.Violations)))
		return Result{
			Outcome:    OutcomeInvalid,
			Link:       link,
			Violations: outcome.Violations,
		}
	}
	p.emit(StageValidate, "trace is valid")

	// Stage 4: serialize
	document, err := json.Marshal(value)
	if err != nil {
		logger.Error("failed to serialize validated trace", zap.Error(err))
		return Result{
			Outcome: OutcomeInvalid,
			Link:    link,
			Violations: []schemas.Violation{{
				Rule:    "serialize",
				Message: "could not be serialized: " + err.Error(),
			}},
		}
	}
	logger.Info("valid trace attachment", zap.Int("bytes", len(document)))
	p.emit(StageSerialize, fmt.Sprintf("%d bytes", len(document)))

	return Result{
		Outcome:  OutcomeValid,
		Link:     link,
		Document: document,
	}
}

func (p *Pipeline) emit(stage, message string) {
	if p.onProgress != nil {
		p.onProgress(ProgressEvent{Stage: stage, Message: message})
	}
}

// failureReason classifies a fetch error as a network or parse failure.
// isTimeout reports whether err is a fetch that ran out of time.
func isTimeout(err error) bool {
	var fetchErr *fetch.Error
	return errors.As(err, &fetchErr) && fetchErr.Timeout()
}

func failureReason(err error) string {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason()
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return ReasonParse
	}
	return ReasonNetwork
}
