package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/executor"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. They
// follow the same error contract as the sqlite package (apperror values for
// not-found and conflicts) so services can be tested without a database.

var (
	_ repository.SnippetRepository     = (*fakeSnippetRepo)(nil)
	_ repository.UserRepository        = (*fakeUserRepo)(nil)
	_ repository.VoteRepository        = (*fakeVoteRepo)(nil)
	_ repository.CommentRepository     = (*fakeCommentRepo)(nil)
	_ repository.LeaderboardRepository = (*fakeLeaderboardRepo)(nil)
	_ executor.Executor                = (*fakeExecutor)(nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSnippetRepo struct {
	mu       sync.Mutex
	snippets map[string]*model.Snippet
	order    []string
	nextID   int

	lastFilter model.SnippetFilter
	lastOpts   repository.ListOptions
	createErr  error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	s.ID = fmt.Sprintf("snip-%d", f.nextID)
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	cp.Categories = append([]string(nil), s.Categories...)
	f.snippets[s.ID] = &cp
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	cp := *s
	cp.Categories = append([]string(nil), s.Categories...)
	return &cp, nil
}

func (f *fakeSnippetRepo) List(_ context.Context, filter model.SnippetFilter, opts repository.ListOptions) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastOpts = opts

	var out []model.Snippet
	for i := len(f.order) - 1; i >= 0; i-- {
		s := f.snippets[f.order[i]]
		if filter.AuthorID != "" && s.AuthorID != filter.AuthorID {
			continue
		}
		out = append(out, *s)
	}
	if opts.Offset >= len(out) {
		return []model.Snippet{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snippets[s.ID]; !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	f.snippets[s.ID] = &cp
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeSnippetRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, s := range f.snippets {
		for _, c := range s.Categories {
			counts[c]++
		}
	}
	out := make([]model.Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.Category{Name: name, SnippetCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	stats  map[string]model.AuthorStats

	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[string]*model.User),
		stats: make(map[string]model.AuthorStats),
	}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Login, u.Login) {
			return apperror.ConflictMessage(fmt.Sprintf("login %q is already taken", u.Login))
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) Upsert(ctx context.Context, u *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	for _, existing := range f.users {
		if existing.GitHubID != 0 && existing.GitHubID == u.GitHubID {
			existing.Email = u.Email
			existing.AvatarURL = u.AvatarURL
			existing.IsAdmin = existing.IsAdmin || u.IsAdmin
			*u = *existing
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, u)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Login, login) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	existing.Bio = u.Bio
	existing.AvatarURL = u.AvatarURL
	return nil
}

func (f *fakeUserRepo) AuthorStats(_ context.Context, userID string) (*model.AuthorStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.stats[userID]
	return &st, nil
}

// addUser stores a user directly and returns its id.
func (f *fakeUserRepo) addUser(login string, admin bool) string {
	u := &model.User{Login: login, IsAdmin: admin}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

type fakeVoteRepo struct {
	mu    sync.Mutex
	votes map[string]map[string]*model.Vote // snippetID -> voterKey -> vote
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[string]map[string]*model.Vote)}
}

func (f *fakeVoteRepo) Create(_ context.Context, v *model.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byKey := f.votes[v.SnippetID]
	if byKey == nil {
		byKey = make(map[string]*model.Vote)
		f.votes[v.SnippetID] = byKey
	}
	if _, dup := byKey[v.VoterKey]; dup {
		return apperror.ConflictMessage("you have already voted for this snippet")
	}
	cp := *v
	byKey[v.VoterKey] = &cp
	return nil
}

func (f *fakeVoteRepo) Delete(_ context.Context, snippetID, voterKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.votes[snippetID][voterKey]; !ok {
		return apperror.NotFound("vote", snippetID)
	}
	delete(f.votes[snippetID], voterKey)
	return nil
}

func (f *fakeVoteRepo) Count(_ context.Context, snippetID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes[snippetID]), nil
}

func (f *fakeVoteRepo) HasVoted(_ context.Context, snippetID, voterKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.votes[snippetID][voterKey]
	return ok, nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []*model.Comment
	nextID   int
	lastOpts repository.ListOptions
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{}
}

func (f *fakeCommentRepo) Create(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = fmt.Sprintf("comment-%d", f.nextID)
	c.CreatedAt = time.Now().UTC()
	cp := *c
	f.comments = append(f.comments, &cp)
	return nil
}

func (f *fakeCommentRepo) GetByID(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("comment", id)
}

func (f *fakeCommentRepo) ListBySnippet(_ context.Context, snippetID string, opts repository.ListOptions) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	out := []model.Comment{}
	for _, c := range f.comments {
		if c.SnippetID == snippetID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == id {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("comment", id)
}

// fakeLeaderboardRepo records the arguments it was called with.
type fakeLeaderboardRepo struct {
	since  time.Time
	limit  int
	metric model.AuthorMetric
}

func (f *fakeLeaderboardRepo) TopSnippets(_ context.Context, since time.Time, limit int) ([]model.SnippetRank, error) {
	f.since = since
	f.limit = limit
	return []model.SnippetRank{}, nil
}

func (f *fakeLeaderboardRepo) TopAuthors(_ context.Context, metric model.AuthorMetric, limit int) ([]model.AuthorRank, error) {
	f.metric = metric
	f.limit = limit
	return []model.AuthorRank{}, nil
}

// fakeExecutor "runs" python by echoing the code back on stdout.
type fakeExecutor struct {
	calls []executor.Request
	err   error
}

func (f *fakeExecutor) Supports(language string) bool {
	return language == "python"
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (*executor.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &executor.Result{Stdout: req.Code, Duration: time.Millisecond}, nil
}
