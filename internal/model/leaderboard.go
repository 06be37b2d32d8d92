package model

// AuthorMetric selects how authors are ranked.
type AuthorMetric string

const (
	MetricVotes    AuthorMetric = "votes"
	MetricSnippets AuthorMetric = "snippets"
)

// SnippetRank is one row of the snippet leaderboard.
type SnippetRank struct {
	Rank    int     `json:"rank"`
	Snippet Snippet `json:"snippet"`
}

// AuthorRank is one row of the author leaderboard.
type AuthorRank struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"userId"`
	Login        string `json:"login"`
	AvatarURL    string `json:"avatarUrl"`
	SnippetCount int    `json:"snippetCount"`
	VoteCount    int    `json:"voteCount"`
}
