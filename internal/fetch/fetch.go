// Package fetch retrieves trace attachments over HTTP.
// Network and parse failures are reported as distinct error kinds.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "LadyBug/1.0 (+https://github.com/LadyBugML/ladybug)"

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindNetwork covers invalid URLs, connection failures, timeouts and non-2xx responses.
	KindNetwork ErrorKind = "network"
	// KindParse means the body was retrieved but is not well-formed JSON.
	KindParse ErrorKind = "parse"
)

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Reason is the short, user-facing name of the failure kind.
func (e *Error) Reason() string {
	return string(e.Kind) + " error"
}

// Timeout reports whether the request gave up waiting on the remote end.
func (e *Error) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Cause, &t) && t.Timeout()
}

// Options configures the fetch behavior.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// URL retrieves the body at urlStr with a single GET. There are no retries.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Kind:    KindNetwork,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{
		Timeout: timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Kind:    KindNetwork,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Kind:    KindNetwork,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, &Error{
			URL:        urlStr,
			Kind:       KindNetwork,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	result := &Result{
		URL:         urlStr,
		Body:        bodyBytes,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &Error{
			URL:        urlStr,
			Kind:       KindNetwork,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	if int64(len(bodyBytes)) > maxBody {
		return nil, &Error{
			URL:        urlStr,
			Kind:       KindNetwork,
			Message:    fmt.Sprintf("response body exceeds %d bytes", maxBody),
			StatusCode: resp.StatusCode,
		}
	}

	return result, nil
}

// JSON retrieves urlStr and decodes the body into a generic JSON value.
func JSON(ctx context.Context, urlStr string, opts *Options) (any, error) {
	result, err := URL(ctx, urlStr, opts)
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal(result.Body, &value); err != nil {
		return nil, &Error{
			URL:        urlStr,
			Kind:       KindParse,
			Message:    describeBody(result),
			StatusCode: result.StatusCode,
			Cause:      err,
		}
	}

	return value, nil
}

// Client fetches JSON attachments with fixed options.
type Client struct {
	opts *Options
}

// NewClient creates a Client. A nil opts uses DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Client{opts: opts}
}

// FetchJSON retrieves and decodes the JSON document at urlStr.
func (c *Client) FetchJSON(ctx context.Context, urlStr string) (any, error) {
	return JSON(ctx, urlStr, c.opts)
}

// describeBody names what was received instead of JSON. GitHub answers
// some attachment URLs with an HTML page (login wall, blob viewer), so
// HTML bodies are described by their page title.
func describeBody(result *Result) string {
	trimmed := bytes.TrimSpace(result.Body)
	if len(trimmed) == 0 {
		return "response body is empty"
	}

	if strings.Contains(result.ContentType, "html") || trimmed[0] == '<' {
		title, err := HTMLTitle(trimmed)
		if err == nil && title != "" {
			return fmt.Sprintf("received HTML page %q instead of JSON", title)
		}
		return "received HTML instead of JSON"
	}

	return "response body is not valid JSON"
}

// HTMLTitle returns the trimmed <title> of an HTML document.
func HTMLTitle(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return cleanWhitespace(doc.Find("title").First().Text()), nil
}

// cleanWhitespace collapses runs of whitespace into single spaces.
func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
