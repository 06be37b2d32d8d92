package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
)

func TestVoteCreate_OncePerVoter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "alice")
	snippet := createTestSnippet(t, db, author.ID, "vote me")

	castVote(t, db, snippet.ID, "ip:1.2.3.4")

	err := db.Votes().Create(ctx, &model.Vote{SnippetID: snippet.ID, VoterKey: "ip:1.2.3.4"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second vote error = %v, want ErrConflict", err)
	}

	n, err := db.Votes().Count(ctx, snippet.ID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestVoteCreate_SameVoterDifferentSnippets(t *testing.T) {
	db := newTestDB(t)
	author := createTestAuthor(t, db, "alice")
	a := createTestSnippet(t, db, author.ID, "a")
	b := createTestSnippet(t, db, author.ID, "b")

	castVote(t, db, a.ID, "user:"+author.ID)
	castVote(t, db, b.ID, "user:"+author.ID)
}

func TestVoteCreate_UnknownSnippet(t *testing.T) {
	db := newTestDB(t)

	err := db.Votes().Create(context.Background(), &model.Vote{SnippetID: "missing", VoterKey: "ip:1.1.1.1"})
	if err == nil {
		t.Fatal("Create() on unknown snippet should fail the foreign key")
	}
}

func TestVoteCreate_ConcurrentSameVoter(t *testing.T) {
	db := newTestDB(t)
	author := createTestAuthor(t, db, "alice")
	snippet := createTestSnippet(t, db, author.ID, "race")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Votes().Create(context.Background(), &model.Vote{SnippetID: snippet.ID, VoterKey: "ip:9.9.9.9"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d concurrent votes succeeded, want exactly 1", succeeded)
	}
}

func TestVoteDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "alice")
	snippet := createTestSnippet(t, db, author.ID, "retract")
	castVote(t, db, snippet.ID, "ip:1.2.3.4")

	if err := db.Votes().Delete(ctx, snippet.ID, "ip:1.2.3.4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	voted, err := db.Votes().HasVoted(ctx, snippet.ID, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("HasVoted() error = %v", err)
	}
	if voted {
		t.Error("HasVoted() = true after retracting")
	}

	err = db.Votes().Delete(ctx, snippet.ID, "ip:1.2.3.4")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	// Voting again after a retraction is allowed.
	castVote(t, db, snippet.ID, "ip:1.2.3.4")
}

func TestVoteHasVoted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestAuthor(t, db, "alice")
	snippet := createTestSnippet(t, db, author.ID, "check")
	castVote(t, db, snippet.ID, "user:"+author.ID)

	voted, err := db.Votes().HasVoted(ctx, snippet.ID, "user:"+author.ID)
	if err != nil || !voted {
		t.Errorf("HasVoted(author) = %v, %v; want true", voted, err)
	}
	voted, err = db.Votes().HasVoted(ctx, snippet.ID, "ip:1.1.1.1")
	if err != nil || voted {
		t.Errorf("HasVoted(stranger) = %v, %v; want false", voted, err)
	}
}
