package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

var _ repository.LeaderboardRepository = (*DB)(nil)

// TopSnippets ranks snippets by vote count, newest first on ties.
// A zero since means all time.
func (db *DB) TopSnippets(ctx context.Context, since time.Time, limit int) ([]model.SnippetRank, error) {
	query := snippetSelect
	var args []any
	if !since.IsZero() {
		query += ` WHERE s.created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY vote_count DESC, s.created_at DESC, s.id DESC LIMIT ?`
	args = append(args, limit)

	snippets, err := querySnippets(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ranking snippets: %w", err)
	}
	if err := loadCategories(ctx, db.conn, snippets); err != nil {
		return nil, err
	}

	ranks := make([]model.SnippetRank, len(snippets))
	for i, s := range snippets {
		ranks[i] = model.SnippetRank{Rank: i + 1, Snippet: s}
	}
	return ranks, nil
}

// TopAuthors ranks users who have submitted at least one snippet.
//
// Both counts are computed for every author; metric only decides the sort
// key. The ORDER BY comes from a fixed switch, never from caller input.
func (db *DB) TopAuthors(ctx context.Context, metric model.AuthorMetric, limit int) ([]model.AuthorRank, error) {
	order := `vote_count DESC, snippet_count DESC, login ASC`
	if metric == model.MetricSnippets {
		order = `snippet_count DESC, vote_count DESC, login ASC`
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, login, avatar_url, snippet_count, vote_count FROM (
			SELECT u.id, u.login, u.avatar_url,
			       (SELECT COUNT(*) FROM snippets s WHERE s.author_id = u.id) AS snippet_count,
			       (SELECT COUNT(*) FROM votes v JOIN snippets s ON s.id = v.snippet_id
			        WHERE s.author_id = u.id) AS vote_count
			FROM users u
		 ) ranked
		 WHERE snippet_count > 0
		 ORDER BY `+order+`
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ranking authors: %w", err)
	}
	defer rows.Close()

	ranks := []model.AuthorRank{}
	for rows.Next() {
		var r model.AuthorRank
		if err := rows.Scan(&r.UserID, &r.Login, &r.AvatarURL, &r.SnippetCount, &r.VoteCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning author rank: %w", err)
		}
		r.Rank = len(ranks) + 1
		ranks = append(ranks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating author ranks: %w", err)
	}
	return ranks, nil
}
