// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Accounts come from two places: local registration (login + bcrypt
// password) and GitHub OAuth. GitHubID is 0 for local accounts, and
// PasswordHash is empty for GitHub-only accounts. Both are stored in
// nullable columns so the UNIQUE constraint on github_id ignores local users.
//
// WHY Email string (not *string)?
// GitHub OAuth returns the primary public email, which can be empty if the
// user has hidden it. We use an empty string as the zero value rather than a
// nullable pointer, which is simpler to work with and safe to display.
type User struct {
	ID           string    `json:"id"        db:"id"`
	GitHubID     int64     `json:"githubId,omitempty" db:"github_id"`
	Login        string    `json:"login"     db:"login"`
	Email        string    `json:"email"     db:"email"`
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	Bio          string    `json:"bio"       db:"bio"`
	IsAdmin      bool      `json:"isAdmin"   db:"is_admin"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Actor is the identity a service call runs on behalf of.
// The zero value is an anonymous caller.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// Authenticated reports whether the actor is a logged-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// CanModify reports whether the actor may change something owned by ownerID.
func (a Actor) CanModify(ownerID string) bool {
	if a.IsAdmin {
		return true
	}
	return a.UserID != "" && a.UserID == ownerID
}

// AuthorProfile is the public view of a user plus their activity.
type AuthorProfile struct {
	User         *User     `json:"user"`
	SnippetCount int       `json:"snippetCount"`
	VoteCount    int       `json:"voteCount"` // votes received on the author's snippets
	CommentCount int       `json:"commentCount"`
	Snippets     []Snippet `json:"snippets"`
}

// AuthorStats is the aggregate part of an AuthorProfile.
type AuthorStats struct {
	SnippetCount int
	VoteCount    int
	CommentCount int
}
