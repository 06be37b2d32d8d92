package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
)

// newTestUserDB returns a *UserDB backed by the same in-memory DB.
func newTestUserDB(t *testing.T) (*DB, *UserDB) {
	t.Helper()
	db := newTestDB(t)
	return db, db.Users()
}

func createTestUser(t *testing.T, u *UserDB, githubID int64, login string) *model.User {
	t.Helper()
	user := &model.User{
		GitHubID:  githubID,
		Login:     login,
		Email:     login + "@example.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/123",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Login:        "testuser",
		Email:        "test@example.com",
		PasswordHash: "$2a$10$hash",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}

	found, err := u.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q, want stored hash", found.PasswordHash)
	}
	if found.GitHubID != 0 {
		t.Errorf("GitHubID = %d, want 0 for a local account", found.GitHubID)
	}
}

func TestUserCreate_LocalAccountsDoNotCollideOnGitHubID(t *testing.T) {
	_, u := newTestUserDB(t)

	createTestUser(t, u, 0, "first")
	createTestUser(t, u, 0, "second")
}

func TestUserCreate_DuplicateLoginIgnoresCase(t *testing.T) {
	_, u := newTestUserDB(t)
	createTestUser(t, u, 0, "octocat")

	err := u.Create(context.Background(), &model.User{Login: "OctoCat"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate login error = %v, want ErrConflict", err)
	}
}

func TestUserCreate_DuplicateGitHubID(t *testing.T) {
	_, u := newTestUserDB(t)
	createTestUser(t, u, 42, "first")

	err := u.Create(context.Background(), &model.User{GitHubID: 42, Login: "second"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate github_id error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestUserGetByID_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByLogin(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, 0, "Alice")

	found, err := u.GetUserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByLogin() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}

	_, err = u.GetUserByLogin(context.Background(), "bob")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByLogin(bob) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{GitHubID: 99, Login: "newbie", Email: "n@example.com"}
	if err := u.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("Upsert() did not set ID")
	}

	found, err := u.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.GitHubID != 99 {
		t.Errorf("GitHubID = %d, want 99", found.GitHubID)
	}
}

func TestUserUpsert_ExistingUserKeepsIDAndLogin(t *testing.T) {
	_, u := newTestUserDB(t)
	original := createTestUser(t, u, 7, "octocat")

	again := &model.User{GitHubID: 7, Login: "renamed", Email: "new@example.com", AvatarURL: "https://new"}
	if err := u.Upsert(context.Background(), again); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if again.ID != original.ID {
		t.Errorf("ID = %q, want %q", again.ID, original.ID)
	}
	if again.Login != "octocat" {
		t.Errorf("Login = %q, want octocat", again.Login)
	}
	if again.Email != "new@example.com" || again.AvatarURL != "https://new" {
		t.Errorf("profile not refreshed: %+v", again)
	}
	if !again.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", original.CreatedAt, again.CreatedAt)
	}
}

func TestUserUpsert_AdminFlagIsSticky(t *testing.T) {
	_, u := newTestUserDB(t)
	ctx := context.Background()

	if err := u.Upsert(ctx, &model.User{GitHubID: 5, Login: "boss", IsAdmin: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	user := &model.User{GitHubID: 5, Login: "boss"}
	if err := u.Upsert(ctx, user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !user.IsAdmin {
		t.Error("IsAdmin was cleared by a later upsert")
	}
}

func TestUserUpsert_LoginTakenByLocalAccount(t *testing.T) {
	_, u := newTestUserDB(t)
	createTestUser(t, u, 0, "octocat")

	user := &model.User{GitHubID: 583231, Login: "octocat"}
	if err := u.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if user.Login != "octocat-583231" {
		t.Errorf("Login = %q, want octocat-583231", user.Login)
	}
}

// =========================================================================
// PROFILE & STATS
// =========================================================================

func TestUserUpdateProfile(t *testing.T) {
	_, u := newTestUserDB(t)
	user := createTestUser(t, u, 0, "alice")

	user.Bio = "I write Go"
	user.AvatarURL = "https://example.com/me.png"
	if err := u.UpdateProfile(context.Background(), user); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	found, err := u.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Bio != "I write Go" || found.AvatarURL != "https://example.com/me.png" {
		t.Errorf("profile = %q/%q, want updated values", found.Bio, found.AvatarURL)
	}

	err = u.UpdateProfile(context.Background(), &model.User{ID: "missing"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserAuthorStats(t *testing.T) {
	db, u := newTestUserDB(t)
	ctx := context.Background()
	alice := createTestUser(t, u, 0, "alice")
	bob := createTestUser(t, u, 0, "bob")

	s1 := createTestSnippet(t, db, alice.ID, "one")
	s2 := createTestSnippet(t, db, alice.ID, "two")
	createTestSnippet(t, db, bob.ID, "bob's")
	castVote(t, db, s1.ID, "user:"+bob.ID)
	castVote(t, db, s2.ID, "user:"+bob.ID)
	castVote(t, db, s2.ID, "ip:10.0.0.1")
	if err := db.Comments().Create(ctx, &model.Comment{SnippetID: s1.ID, AuthorID: alice.ID, AuthorName: "alice", Body: "thanks"}); err != nil {
		t.Fatalf("creating comment: %v", err)
	}

	stats, err := u.AuthorStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("AuthorStats() error = %v", err)
	}
	if stats.SnippetCount != 2 || stats.VoteCount != 3 || stats.CommentCount != 1 {
		t.Errorf("stats = %+v, want 2 snippets, 3 votes, 1 comment", *stats)
	}
}
