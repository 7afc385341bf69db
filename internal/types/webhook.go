// Package types provides type definitions for structured data used throughout the triage bot.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Repository identifies the repository an event belongs to.
type Repository struct {
	Name          string `json:"name" validate:"required"`
	FullName      string `json:"full_name" validate:"required"`
	HTMLURL       string `json:"html_url,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	Owner         struct {
		Login string `json:"login" validate:"required"`
	} `json:"owner"`
}

// Issue is the subset of a tracker issue the bot needs.
type Issue struct {
	Number int    `json:"number" validate:"required,gt=0"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Installation carries the GitHub App installation that delivered the event.
type Installation struct {
	ID int64 `json:"id"`
}

// User is the account that authored a comment.
type User struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Comment is an issue comment.
type Comment struct {
	Body string `json:"body"`
	User User   `json:"user"`
}

// IssueEvent is the webhook payload for "issues" and "issue_comment" events.
type IssueEvent struct {
	Action       string        `json:"action" validate:"required"`
	Issue        Issue         `json:"issue"`
	Repository   Repository    `json:"repository"`
	Installation *Installation `json:"installation,omitempty"`
	Comment      *Comment      `json:"comment,omitempty"`
}

// FromBot reports whether the event was caused by a bot's comment,
// including the triage bot's own replies.
func (e *IssueEvent) FromBot() bool {
	return e.Comment != nil && e.Comment.User.Type == "Bot"
}

// Validate validates the IssueEvent using the validator.
func (e *IssueEvent) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

// InstallationRepository is a repository listed in an installation event.
type InstallationRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name" validate:"required,contains=/"`
}

// OwnerAndName splits FullName into the owner login and repository name.
func (r InstallationRepository) OwnerAndName() (string, string) {
	owner, name, _ := strings.Cut(r.FullName, "/")
	return owner, name
}

// InstallationEvent is the webhook payload for "installation" and
// "installation_repositories" events.
type InstallationEvent struct {
	Action       string `json:"action" validate:"required"`
	Installation struct {
		ID int64 `json:"id" validate:"required"`
	} `json:"installation"`
	// Repositories lists every repository of a new installation.
	Repositories []InstallationRepository `json:"repositories" validate:"dive"`
	// RepositoriesAdded lists repositories added to an existing installation.
	RepositoriesAdded []InstallationRepository `json:"repositories_added" validate:"dive"`
}

// Repos returns the repositories the event gives the App access to.
func (e *InstallationEvent) Repos() []InstallationRepository {
	if e.Action == "added" {
		return e.RepositoriesAdded
	}
	return e.Repositories
}

// Validate validates the InstallationEvent using the validator.
func (e *InstallationEvent) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

// PostMessageRequest is a progress update sent by the localization backend.
// CommentID is the issue number; -1 means the backend has nowhere to post.
type PostMessageRequest struct {
	Owner     string `json:"owner" validate:"required"`
	Repo      string `json:"repo" validate:"required"`
	CommentID int    `json:"comment_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// Validate validates the PostMessageRequest using the validator.
func (r *PostMessageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
