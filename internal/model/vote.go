package model

import (
	"strings"
	"time"
)

// Vote is a single up-vote on a snippet.
//
// A voter is either a logged-in user or, for anonymous visitors, an IP
// address. VoterKey folds both into one string so the database can enforce
// at-most-one vote per voter with a single UNIQUE(snippet_id, voter_key).
type Vote struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	UserID    string    `json:"userId,omitempty"`
	VoterIP   string    `json:"-"`
	VoterKey  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Voter identifies who is casting a vote.
type Voter struct {
	UserID string
	IP     string
}

// Key returns the deduplication key for this voter, or "" if the voter is
// unidentifiable. A user id wins over an IP address.
func (v Voter) Key() string {
	if id := strings.TrimSpace(v.UserID); id != "" {
		return "user:" + id
	}
	if ip := strings.TrimSpace(v.IP); ip != "" {
		return "ip:" + ip
	}
	return ""
}

// VoteResult is returned after a vote is cast or retracted.
type VoteResult struct {
	SnippetID string `json:"snippetId"`
	VoteCount int    `json:"voteCount"`
	Voted     bool   `json:"voted"`
}
