// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet represents a shared code sample.
//
// AuthorLogin, VoteCount and ViewerVoted are not columns of the snippets
// table: the repository fills them in with joins and aggregates when the
// snippet is read, so the vote count is always computed at query time.
type Snippet struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Categories  []string  `json:"categories"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	AuthorID    string    `json:"authorId"`
	AuthorLogin string    `json:"authorLogin"`
	VoteCount   int       `json:"voteCount"`
	ViewerVoted bool      `json:"viewerVoted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SnippetSort selects the ordering of a snippet listing.
type SnippetSort string

const (
	SortNewest SnippetSort = "newest"
	SortTop    SnippetSort = "top"
)

// SnippetFilter narrows a snippet listing. Zero values mean "no filter".
type SnippetFilter struct {
	Category string
	AuthorID string
	Query    string // substring match on title and description
	Sort     SnippetSort
}

// Category is a tag together with the number of snippets carrying it.
type Category struct {
	Name         string `json:"name"`
	SnippetCount int    `json:"snippetCount"`
}
