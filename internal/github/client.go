// Package github posts issue comments through the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every GitHub API call.
const DefaultTimeout = 15 * time.Second

// TokenSource supplies an API token for an installation. Installation 0
// means the event carried no installation.
type TokenSource interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context, int64) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no GitHub token configured")
	}
	return string(s), nil
}

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
}

// IssueRef addresses an issue and the installation allowed to write to it.
type IssueRef struct {
	InstallationID int64
	Owner          string
	Repo           string
	Number         int
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// RepoRef returns the repository the issue belongs to.
func (r IssueRef) RepoRef() RepoRef {
	return RepoRef{InstallationID: r.InstallationID, Owner: r.Owner, Repo: r.Repo}
}

// RepoRef addresses a repository and the installation allowed to read it.
type RepoRef struct {
	InstallationID int64
	Owner          string
	Repo           string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Repo
}

// RepositoryInfo is the repository metadata the ranking backend needs.
type RepositoryInfo struct {
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// installationResolver finds the installation for a repository when an
// IssueRef does not name one.
type installationResolver interface {
	InstallationForRepo(ctx context.Context, owner, repo string) (int64, error)
}

// CreateComment posts body as a new comment on the issue.
func (c *Client) CreateComment(ctx context.Context, issue IssueRef, body string) error {
	authorization, err := c.authorization(ctx, issue.RepoRef())
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, issue.Owner, issue.Repo, issue.Number)
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}

	if err := c.do(ctx, http.MethodPost, endpoint, authorization, payload, nil); err != nil {
		return err
	}

	c.logger.Info("posted issue comment", zap.Stringer("issue", issue), zap.Int("length", len(body)))
	return nil
}

// Repository returns the URL and default branch of repo.
func (c *Client) Repository(ctx context.Context, repo RepoRef) (*RepositoryInfo, error) {
	authorization, err := c.authorization(ctx, repo)
	if err != nil {
		return nil, err
	}

	var info RepositoryInfo
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, repo.Owner, repo.Repo)
	if err := c.do(ctx, http.MethodGet, endpoint, authorization, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// HeadCommit returns the SHA of the latest commit on branch.
func (c *Client) HeadCommit(ctx context.Context, repo RepoRef, branch string) (string, error) {
	authorization, err := c.authorization(ctx, repo)
	if err != nil {
		return "", err
	}

	var resp struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/branches/%s", c.baseURL, repo.Owner, repo.Repo, branch)
	if err := c.do(ctx, http.MethodGet, endpoint, authorization, nil, &resp); err != nil {
		return "", err
	}
	if resp.Commit.SHA == "" {
		return "", fmt.Errorf("branch %s of %s has no head commit", branch, repo)
	}
	return resp.Commit.SHA, nil
}

// authorization returns the Authorization header for requests on repo,
// resolving its installation when the token source needs one.
func (c *Client) authorization(ctx context.Context, repo RepoRef) (string, error) {
	if resolver, ok := c.tokens.(installationResolver); ok && repo.InstallationID == 0 {
		id, err := resolver.InstallationForRepo(ctx, repo.Owner, repo.Repo)
		if err != nil {
			return "", err
		}
		repo.InstallationID = id
	}

	token, err := c.tokens.Token(ctx, repo.InstallationID)
	if err != nil {
		return "", fmt.Errorf("failed to obtain GitHub token: %w", err)
	}
	return "token " + token, nil
}

// do performs an API request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, endpoint, authorization string, payload []byte, out any) error {
	return doJSON(ctx, c.httpClient, method, endpoint, authorization, payload, out)
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, authorization string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Authorization", authorization)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s %s failed: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read GitHub response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Message:    apiErr.Message,
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode GitHub response: %w", err)
		}
	}
	return nil
}
