package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/octo/app/issues/12/comments", r.URL.Path)
		assert.Equal(t, "token ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", StaticToken("ghp_test"), nil)
	err := client.CreateComment(context.Background(), IssueRef{Owner: "octo", Repo: "app", Number: 12}, "hello")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"body": "hello"}, gotBody)
}

func TestCreateComment_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Resource not accessible by integration"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"), nil)
	err := client.CreateComment(context.Background(), IssueRef{Owner: "o", Repo: "r", Number: 1}, "x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Resource not accessible by integration", apiErr.Message)
}

func TestCreateComment_NoToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", StaticToken(""), nil)
	err := client.CreateComment(context.Background(), IssueRef{Owner: "o", Repo: "r", Number: 1}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GitHub token configured")
}

func TestIssueRef_String(t *testing.T) {
	assert.Equal(t, "octo/app#3", IssueRef{Owner: "octo", Repo: "app", Number: 3}.String())
}

func TestRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/octo/app", r.URL.Path)
		assert.Equal(t, "token ghp_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"name": "app", "html_url": "https://github.com/octo/app", "default_branch": "develop"}`))
	}))
	defer server.Close()

	info, err := NewClient(server.URL, StaticToken("ghp_test"), nil).Repository(context.Background(), RepoRef{Owner: "octo", Repo: "app"})
	require.NoError(t, err)
	assert.Equal(t, &RepositoryInfo{HTMLURL: "https://github.com/octo/app", DefaultBranch: "develop"}, info)
}

func TestHeadCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/app/branches/main", r.URL.Path)
		_, _ = w.Write([]byte(`{"name": "main", "commit": {"sha": "3b54e17143c9906585fc0df1b4d2a3f969a2de5a"}}`))
	}))
	defer server.Close()

	sha, err := NewClient(server.URL, StaticToken("t"), nil).HeadCommit(context.Background(), RepoRef{Owner: "octo", Repo: "app"}, "main")
	require.NoError(t, err)
	assert.Equal(t, "3b54e17143c9906585fc0df1b4d2a3f969a2de5a", sha)
}

func TestHeadCommit_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octo/app/branches/gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Branch not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"name": "empty"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("t"), nil)
	repo := RepoRef{Owner: "octo", Repo: "app"}

	_, err := client.HeadCommit(context.Background(), repo, "gone")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = client.HeadCommit(context.Background(), repo, "empty")
	assert.ErrorContains(t, err, "has no head commit")
}

func TestIssueRef_RepoRef(t *testing.T) {
	issue := IssueRef{InstallationID: 9, Owner: "octo", Repo: "app", Number: 3}
	assert.Equal(t, RepoRef{InstallationID: 9, Owner: "octo", Repo: "app"}, issue.RepoRef())
	assert.Equal(t, "octo/app", issue.RepoRef().String())
}
