package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X, so a
// missing method shows up here instead of wherever *DB is first injected.
var _ repository.SnippetRepository = (*DB)(nil)

// snippetSelect is shared by every query that returns full snippets.
//
// The vote count is a correlated subquery rather than a stored counter: the
// votes table is the single source of truth and the count can never drift.
// The LEFT JOIN keeps a snippet visible even if its author row is missing.
const snippetSelect = `
	SELECT s.id, s.title, s.code, s.description, s.language, s.image_url,
	       s.author_id, COALESCE(u.login, ''),
	       (SELECT COUNT(*) FROM votes v WHERE v.snippet_id = s.id) AS vote_count,
	       s.created_at, s.updated_at
	FROM snippets s
	LEFT JOIN users u ON u.id = s.author_id`

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner, s *model.Snippet) error {
	return row.Scan(
		&s.ID, &s.Title, &s.Code, &s.Description, &s.Language, &s.ImageURL,
		&s.AuthorID, &s.AuthorLogin, &s.VoteCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new snippet and its category tags in one transaction.
//
// The repository owns ID generation and timestamps; after Create returns, the
// caller's snippet has them filled in (pointer argument).
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snippets (id, title, code, description, language, image_url, author_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snippet.ID,
			snippet.Title,
			snippet.Code,
			snippet.Description,
			snippet.Language,
			snippet.ImageURL,
			snippet.AuthorID,
			snippet.CreatedAt,
			snippet.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating snippet: %w", err)
		}
		return insertCategories(ctx, tx, snippet.ID, snippet.Categories)
	})
}

// GetByID retrieves a single snippet by its ID, with author login, vote count
// and categories filled in.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet

	err := scanSnippet(db.conn.QueryRowContext(ctx, snippetSelect+` WHERE s.id = ?`, id), &snippet)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	list := []model.Snippet{snippet}
	if err := loadCategories(ctx, db.conn, list); err != nil {
		return nil, err
	}

	return &list[0], nil
}

// List retrieves snippets matching filter with LIMIT/OFFSET pagination.
//
// The WHERE clause is assembled from fixed fragments; user input only ever
// travels as ? arguments. The ORDER BY is chosen from a closed set.
func (db *DB) List(ctx context.Context, filter model.SnippetFilter, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, `EXISTS (SELECT 1 FROM snippet_categories c WHERE c.snippet_id = s.id AND c.name = ?)`)
		args = append(args, filter.Category)
	}
	if filter.AuthorID != "" {
		where = append(where, `s.author_id = ?`)
		args = append(args, filter.AuthorID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		where = append(where, `(s.title LIKE ? ESCAPE '\' OR s.description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := snippetSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	switch filter.Sort {
	case model.SortTop:
		query += ` ORDER BY vote_count DESC, s.created_at DESC, s.id DESC`
	default:
		query += ` ORDER BY s.created_at DESC, s.id DESC`
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	snippets, err := querySnippets(ctx, db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}

	if err := loadCategories(ctx, db.conn, snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// Update modifies an existing snippet and replaces its category tags.
// id, author_id and created_at are immutable.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE snippets
			 SET title = ?, code = ?, description = ?, language = ?, image_url = ?, updated_at = ?
			 WHERE id = ?`,
			snippet.Title,
			snippet.Code,
			snippet.Description,
			snippet.Language,
			snippet.ImageURL,
			snippet.UpdatedAt,
			snippet.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("snippet", snippet.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM snippet_categories WHERE snippet_id = ?`, snippet.ID); err != nil {
			return fmt.Errorf("sqlite: clearing categories of %s: %w", snippet.ID, err)
		}
		return insertCategories(ctx, tx, snippet.ID, snippet.Categories)
	})
}

// Delete removes a snippet and everything hanging off it.
//
// The foreign keys cascade as well, but the dependent rows are deleted
// explicitly so the outcome does not hinge on the foreign_keys pragma of
// whichever pooled connection runs the statement.
func (db *DB) Delete(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM votes WHERE snippet_id = ?`,
			`DELETE FROM comments WHERE snippet_id = ?`,
			`DELETE FROM snippet_categories WHERE snippet_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("sqlite: deleting dependents of snippet %s: %w", id, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("snippet", id)
		}
		return nil
	})
}

// ListCategories returns every category in use with its snippet count,
// most used first.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, COUNT(*) AS n
		 FROM snippet_categories
		 GROUP BY name
		 ORDER BY n DESC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Name, &c.SnippetCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

// querySnippets runs a snippetSelect-shaped query and scans every row.
// The rows are fully drained and closed before it returns, which matters for
// ":memory:" databases where the pool holds a single connection.
func querySnippets(ctx context.Context, q querier, query string, args ...any) ([]model.Snippet, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snippets := []model.Snippet{}
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snippets: %w", err)
	}
	return snippets, nil
}

// loadCategories fills in Categories for every snippet in one query.
// Snippets without tags get an empty (non-nil) slice so they encode as [].
func loadCategories(ctx context.Context, q querier, snippets []model.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}

	index := make(map[string]int, len(snippets))
	placeholders := make([]string, len(snippets))
	args := make([]any, len(snippets))
	for i := range snippets {
		snippets[i].Categories = []string{}
		index[snippets[i].ID] = i
		placeholders[i] = "?"
		args[i] = snippets[i].ID
	}

	rows, err := q.QueryContext(ctx,
		`SELECT snippet_id, name FROM snippet_categories
		 WHERE snippet_id IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY snippet_id, name`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snippetID, name string
		if err := rows.Scan(&snippetID, &name); err != nil {
			return fmt.Errorf("sqlite: scanning category: %w", err)
		}
		if i, ok := index[snippetID]; ok {
			snippets[i].Categories = append(snippets[i].Categories, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return nil
}

func insertCategories(ctx context.Context, q querier, snippetID string, categories []string) error {
	for _, name := range categories {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO snippet_categories (snippet_id, name) VALUES (?, ?)`,
			snippetID, name,
		)
		if err != nil {
			return fmt.Errorf("sqlite: tagging snippet %s with %q: %w", snippetID, name, err)
		}
	}
	return nil
}

// escapeLike escapes LIKE wildcards so a search for "100%" matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
