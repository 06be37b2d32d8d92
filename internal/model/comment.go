package model

import "time"

// Comment is a message attached to a snippet. AuthorID is empty for
// anonymous comments; AuthorName is always set.
type Comment struct {
	ID         string    `json:"id"`
	SnippetID  string    `json:"snippetId"`
	AuthorID   string    `json:"authorId,omitempty"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}
