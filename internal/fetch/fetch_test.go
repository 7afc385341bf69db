package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, `{"ok": true}`, string(result.Body))
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "application/json", result.ContentType)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.NotNil(t, result) // Result is returned even on error
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, "network error", fetchErr.Reason())
	assert.Contains(t, err.Error(), "404")
}

func TestURL_AcceptsAny2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := URL(context.Background(), server.URL, nil)
	assert.NoError(t, err)
}

func TestURL_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Timeout = 50 * time.Millisecond

	_, err := URL(context.Background(), server.URL, opts)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
	assert.True(t, fetchErr.Timeout())
}

func TestURL_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"padding": "0123456789"}`))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.MaxBodyBytes = 8

	_, err := URL(context.Background(), server.URL, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 8 bytes")
}

func TestJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"steps": [{"action": 1}], "crash": false}`))
	}))
	defer server.Close()

	value, err := JSON(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"steps": []any{map[string]any{"action": float64(1)}},
		"crash": false,
	}, value)
}

func TestJSON_ParseFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantMessage string
	}{
		{name: "plain text", contentType: "text/plain", body: "not json", wantMessage: "response body is not valid JSON"},
		{name: "empty body", contentType: "application/json", body: "  ", wantMessage: "response body is empty"},
		{
			name:        "html page",
			contentType: "text/html; charset=utf-8",
			body:        "<html><head><title>\n  Sign in to GitHub \n</title></head><body>login</body></html>",
			wantMessage: `received HTML page "Sign in to GitHub" instead of JSON`,
		},
		{
			name:        "html without title",
			contentType: "text/html",
			body:        "<html><body>nothing</body></html>",
			wantMessage: "received HTML instead of JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := JSON(context.Background(), server.URL, nil)
			require.Error(t, err)

			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, KindParse, fetchErr.Kind)
			assert.Equal(t, "parse error", fetchErr.Reason())
			assert.Equal(t, tt.wantMessage, fetchErr.Message)
		})
	}
}

func TestJSON_NetworkFailureIsNotParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := JSON(context.Background(), server.URL, nil)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindNetwork, fetchErr.Kind)
}

func TestClient_FetchJSON(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"a": 1}`))
	}))
	defer server.Close()

	client := NewClient(nil)
	value, err := client.FetchJSON(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, value)
	assert.Equal(t, 1, hits)
}

func TestHTMLTitle(t *testing.T) {
	title, err := HTMLTitle([]byte("<html><head><title>Page   not found</title></head></html>"))
	require.NoError(t, err)
	assert.Equal(t, "Page not found", title)
}
