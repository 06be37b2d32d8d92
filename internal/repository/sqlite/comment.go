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

// CommentDB is the comments view over the shared pool.
type CommentDB struct {
	conn *sql.DB
}

var _ repository.CommentRepository = (*CommentDB)(nil)

// Comments returns the comment repository backed by this database.
func (db *DB) Comments() *CommentDB {
	return &CommentDB{conn: db.conn}
}

func scanComment(row rowScanner) (*model.Comment, error) {
	var (
		c        model.Comment
		authorID sql.NullString
	)
	if err := row.Scan(&c.ID, &c.SnippetID, &authorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.AuthorID = authorID.String
	return &c, nil
}

func (r *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO comments (id, snippet_id, author_id, author_name, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.SnippetID,
		nullString(comment.AuthorID),
		comment.AuthorName,
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on %s: %w", comment.SnippetID, err)
	}
	return nil
}

func (r *CommentDB) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(r.conn.QueryRowContext(ctx,
		`SELECT id, snippet_id, author_id, author_name, body, created_at
		 FROM comments WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return c, nil
}

// ListBySnippet returns a snippet's comments oldest first, so a thread reads
// top to bottom.
func (r *CommentDB) ListBySnippet(ctx context.Context, snippetID string, opts repository.ListOptions) ([]model.Comment, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, snippet_id, author_id, author_name, body, created_at
		 FROM comments
		 WHERE snippet_id = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		snippetID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of %s: %w", snippetID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, limit)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

func (r *CommentDB) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}
