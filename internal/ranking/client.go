// Package ranking talks to the bug-localization backend that ranks source
// files for an issue.
package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ladybugml/ladybug-bot/internal/types"
)

// DefaultTimeout covers cloning and embedding on the backend side.
const DefaultTimeout = 10 * time.Minute

// Repository describes the repository being ranked, in the backend's format.
type Repository struct {
	RepoURL         string `json:"repo_url"`
	Owner           string `json:"owner"`
	RepoName        string `json:"repo_name"`
	DefaultBranch   string `json:"default_branch,omitempty"`
	LatestCommitSHA string `json:"latest_commit_sha,omitempty"`
}

// Request is the body of a report request. Trace carries the serialized
// trace document as a JSON string, since the backend decodes it itself; it
// is omitted unless the issue carried a valid trace attachment.
type Request struct {
	Repository Repository `json:"repository"`
	Issue      string     `json:"issue"`
	Trace      string     `json:"trace,omitempty"`
	CommentID  int        `json:"comment_id"`
}

// NoComment is the comment id for requests with no issue to report
// progress to, such as repository initialization.
const NoComment = -1

// initializeRequest is the body of an initialization request.
type initializeRequest struct {
	RepoData  Repository `json:"repoData"`
	CommentID int        `json:"comment_id"`
}

// Error is a failed call to the backend.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ranking request failed: %s: %v", e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("ranking request failed: status %d: %s", e.StatusCode, e.Message)
	}
	return "ranking request failed: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client calls the backend's report endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Rank submits the issue and optional trace and returns the ranked files.
func (c *Client) Rank(ctx context.Context, req Request) (*types.Ranking, error) {
	var ranking types.Ranking
	if err := c.post(ctx, "/report", req, &ranking); err != nil {
		return nil, err
	}
	return &ranking, nil
}

// Initialize asks the backend to clone repo and index it at
// repo.LatestCommitSHA. Reports for a repository fail until it has been
// initialized once.
func (c *Client) Initialize(ctx context.Context, repo Repository, commentID int) error {
	return c.post(ctx, "/initialization", initializeRequest{RepoData: repo, CommentID: commentID}, nil)
}

// post sends payload to path and decodes a 200 response into out when non-nil.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Error{Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &failure)
		if failure.Message == "" {
			failure.Message = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: failure.Message}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{StatusCode: resp.StatusCode, Message: "failed to decode ranking", Cause: err}
		}
	}
	return nil
}
