package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/manarah-platform/manarah/internal/shared"
)

type memoryRepo struct {
	nextID int64
	tokens map[int64]Token
	gets   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, tokens: map[int64]Token{}}
}

func (m *memoryRepo) Create(_ context.Context, t Token) (int64, error) {
	t.ID = m.nextID
	m.nextID++
	m.tokens[t.ID] = t
	return t.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Token, error) {
	m.gets++
	t, ok := m.tokens[id]
	if !ok {
		return Token{}, shared.Failf(shared.ErrNotFound, "token %d not found", id)
	}
	return t, nil
}

func (m *memoryRepo) Revoke(_ context.Context, id int64) error {
	t, ok := m.tokens[id]
	if !ok {
		return shared.Failf(shared.ErrNotFound, "token %d not found", id)
	}
	t.Active = false
	m.tokens[id] = t
	return nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestIssueResolveRoundtrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	bearer, err := svc.Issue(ctx, 7, "financial_officer", nil)
	require.NoError(t, err)

	actor, err := svc.Resolve(ctx, bearer)
	require.NoError(t, err)
	require.Equal(t, shared.Actor{ID: 7, Role: "financial_officer"}, actor)
}

func TestResolveMalformed(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, 0, nil)
	ctx := context.Background()

	for _, bearer := range []string{"", "no-dot", "1.", ".secret", "x.secret", "-1.secret"} {
		_, err := svc.Resolve(ctx, bearer)
		require.ErrorIs(t, err, ErrInvalidToken, "bearer %q", bearer)
	}
}

func TestResolveWrongSecret(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, 7, "reviewer", nil)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "1.deadbeef")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRevoked(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	bearer, err := svc.Issue(ctx, 7, "reviewer", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, 1))

	_, err = svc.Resolve(ctx, bearer)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveExpired(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	bearer, err := svc.Issue(ctx, 7, "reviewer", &past)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, bearer)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveUsesCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testRedis(t), time.Minute, nil)
	ctx := context.Background()

	bearer, err := svc.Issue(ctx, 7, "reviewer", nil)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, bearer)
	require.NoError(t, err)
	require.Equal(t, 1, repo.gets)

	// Second resolution is served from redis without touching postgres.
	actor, err := svc.Resolve(ctx, bearer)
	require.NoError(t, err)
	require.Equal(t, int64(7), actor.ID)
	require.Equal(t, 1, repo.gets)
}

func TestMiddlewareAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	bearer, err := svc.Issue(ctx, 7, "reviewer", nil)
	require.NoError(t, err)

	var got shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware{Service: svc}.Authenticate(next)

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, int64(7), got.ID)

	// Missing and malformed headers are rejected before the handler runs.
	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/requests", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
