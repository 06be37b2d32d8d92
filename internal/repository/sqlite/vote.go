package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// VoteDB is the votes view over the shared pool.
type VoteDB struct {
	conn *sql.DB
}

var _ repository.VoteRepository = (*VoteDB)(nil)

// Votes returns the vote repository backed by this database.
func (db *DB) Votes() *VoteDB {
	return &VoteDB{conn: db.conn}
}

// Create records a vote. The UNIQUE(snippet_id, voter_key) constraint does
// the at-most-once check atomically, so two concurrent requests from the same
// voter cannot both succeed.
func (v *VoteDB) Create(ctx context.Context, vote *model.Vote) error {
	vote.ID = xid.New().String()
	vote.CreatedAt = time.Now().UTC()

	_, err := v.conn.ExecContext(ctx,
		`INSERT INTO votes (id, snippet_id, user_id, voter_ip, voter_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		vote.ID,
		vote.SnippetID,
		nullString(vote.UserID),
		vote.VoterIP,
		vote.VoterKey,
		vote.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("you have already voted for this snippet")
		}
		return fmt.Errorf("sqlite: recording vote on %s: %w", vote.SnippetID, err)
	}
	return nil
}

// Delete retracts the voter's vote on a snippet.
func (v *VoteDB) Delete(ctx context.Context, snippetID, voterKey string) error {
	result, err := v.conn.ExecContext(ctx,
		`DELETE FROM votes WHERE snippet_id = ? AND voter_key = ?`,
		snippetID, voterKey,
	)
	if err != nil {
		return fmt.Errorf("sqlite: retracting vote on %s: %w", snippetID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("vote", snippetID)
	}
	return nil
}

// Count returns the number of votes on a snippet.
func (v *VoteDB) Count(ctx context.Context, snippetID string) (int, error) {
	var n int
	err := v.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE snippet_id = ?`, snippetID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting votes on %s: %w", snippetID, err)
	}
	return n, nil
}

// HasVoted reports whether voterKey already voted on the snippet.
func (v *VoteDB) HasVoted(ctx context.Context, snippetID, voterKey string) (bool, error) {
	var exists bool
	err := v.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE snippet_id = ? AND voter_key = ?)`,
		snippetID, voterKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking vote on %s: %w", snippetID, err)
	}
	return exists, nil
}
