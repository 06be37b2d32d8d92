package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// UserDB is the users view over the shared pool.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

const userSelect = `
	SELECT id, github_id, login, email, avatar_url, bio, is_admin, password_hash, created_at, updated_at
	FROM users`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
		hash     sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&githubID,
		&u.Login,
		&u.Email,
		&u.AvatarURL,
		&u.Bio,
		&u.IsAdmin,
		&hash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	u.PasswordHash = hash.String
	return &u, nil
}

// nullInt64 stores 0 as NULL so local accounts don't collide on github_id.
func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// Create inserts a new user. A taken login (case-insensitive) or GitHub id
// is reported as an apperror conflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	return u.insert(ctx, user)
}

func (u *UserDB) insert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, bio, is_admin, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullInt64(user.GitHubID),
		user.Login,
		user.Email,
		user.AvatarURL,
		user.Bio,
		user.IsAdmin,
		nullString(user.PasswordHash),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage(fmt.Sprintf("login %q is already taken", user.Login))
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Login, err)
	}
	return nil
}

// Upsert inserts or updates a user based on their GitHub ID.
//
// Existing users KEEP their internal ID and login; only the profile fields
// GitHub owns (email, avatar) and the admin flag are refreshed. A brand-new
// GitHub user whose login is already used by a local account gets the
// GitHub id appended ("octocat-583231") instead of failing the login.
func (u *UserDB) Upsert(ctx context.Context, user *model.User) error {
	existing, err := scanUser(u.conn.QueryRowContext(ctx, userSelect+` WHERE github_id = ?`, user.GitHubID))
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existing != nil {
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		existing.IsAdmin = existing.IsAdmin || user.IsAdmin
		existing.UpdatedAt = time.Now().UTC()

		_, err = u.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, avatar_url = ?, is_admin = ?, updated_at = ?
			 WHERE id = ?`,
			existing.Email,
			existing.AvatarURL,
			existing.IsAdmin,
			existing.UpdatedAt,
			existing.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
		}
		*user = *existing
		return nil
	}

	err = u.insert(ctx, user)
	if err == nil || !errors.Is(err, apperror.ErrConflict) {
		return err
	}

	user.Login = fmt.Sprintf("%s-%d", user.Login, user.GitHubID)
	return u.insert(ctx, user)
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByLogin looks a user up by login, ignoring case.
func (u *UserDB) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx, userSelect+` WHERE login = ?`, login))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", login)
		}
		return nil, fmt.Errorf("sqlite: getting user by login %q: %w", login, err)
	}
	return user, nil
}

// UpdateProfile saves the user-editable profile fields (bio, avatar).
func (u *UserDB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET bio = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Bio,
		user.AvatarURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile of %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// AuthorStats counts a user's snippets, the votes those snippets received,
// and the comments the user wrote.
func (u *UserDB) AuthorStats(ctx context.Context, userID string) (*model.AuthorStats, error) {
	var stats model.AuthorStats
	err := u.conn.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM snippets WHERE author_id = ?),
			(SELECT COUNT(*) FROM votes v JOIN snippets s ON s.id = v.snippet_id WHERE s.author_id = ?),
			(SELECT COUNT(*) FROM comments WHERE author_id = ?)`,
		userID, userID, userID,
	).Scan(&stats.SnippetCount, &stats.VoteCount, &stats.CommentCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite: computing stats for %s: %w", userID, err)
	}
	return &stats, nil
}
