package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, store TokenStore, ttl time.Duration) (*Registry, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var built, closed atomic.Int32
	build := func(_ context.Context, id string) *Workspace {
		built.Add(1)
		return &Workspace{
			ID:    id,
			Auth:  NewAuthSession(id, new(mockAuthenticator), store, expiryByToken{}, validation.New(), discard),
			Close: func() { closed.Add(1) },
		}
	}
	return NewRegistry(build, ttl, discard), &built, &closed
}

func TestRegistry_GetBuildsOnceAndRestores(t *testing.T) {
	// given
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "s1", "tok-1"))
	r, built, _ := newTestRegistry(t, store, time.Minute)

	// when
	first := r.Get(ctx, "s1")
	second := r.Get(ctx, "s1")

	// then
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), built.Load())
	assert.True(t, first.Auth.IsAuthenticated(), "persisted token restores the session")
	assert.Equal(t, "tok-1", first.Auth.Token())
}

func TestRegistry_EvictsIdleWorkspaces(t *testing.T) {
	// given
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	r, built, closed := newTestRegistry(t, store, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	r.Get(ctx, "old")
	now = now.Add(50 * time.Second)
	r.Get(ctx, "fresh")

	// when
	now = now.Add(20 * time.Second)
	evicted := r.Evict()

	// then
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int32(1), closed.Load())
	r.Get(ctx, "old")
	assert.Equal(t, int32(3), built.Load(), "an evicted workspace is rebuilt on its next request")
}

func TestRegistry_RunClosesEverythingOnShutdown(t *testing.T) {
	// given
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	r, _, closed := newTestRegistry(t, store, time.Hour)
	r.Get(context.Background(), "a")
	r.Get(context.Background(), "b")
	ctx, cancel := context.WithCancel(context.Background())

	// when
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	// then
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(2), closed.Load())
	assert.Zero(t, r.Len())
}

func TestRegistry_NewIDIsUnique(t *testing.T) {
	r, _, _ := newTestRegistry(t, nil, time.Minute)
	assert.NotEqual(t, r.NewID(), r.NewID())
}

func TestRegistry_ValidID(t *testing.T) {
	r, _, _ := newTestRegistry(t, nil, time.Minute)
	assert.True(t, r.ValidID(r.NewID()))
	assert.False(t, r.ValidID("attacker-chosen"))
	assert.False(t, r.ValidID(""))
}

func TestRegistry_RestoreRetriesAfterStoreError(t *testing.T) {
	// given
	store := new(mockTokenStore)
	store.On("Load", mock.Anything, "s1").Return("", errors.New("connection reset")).Once()
	store.On("Load", mock.Anything, "s1").Return("tok-1", nil).Once()
	r, built, _ := newTestRegistry(t, store, time.Minute)
	ctx := context.Background()

	// when
	first := r.Get(ctx, "s1")
	authenticatedFirst := first.Auth.IsAuthenticated()
	second := r.Get(ctx, "s1")
	r.Get(ctx, "s1")

	// then
	assert.False(t, authenticatedFirst)
	assert.Same(t, first, second)
	assert.True(t, second.Auth.IsAuthenticated())
	assert.Equal(t, int32(1), built.Load())
	store.AssertNumberOfCalls(t, "Load", 2)
}

func TestRegistry_DropClearsTokenAndCloses(t *testing.T) {
	// given
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "s1", "tok-1"))
	r, built, closed := newTestRegistry(t, store, time.Minute)
	require.True(t, r.Get(ctx, "s1").Auth.IsAuthenticated())

	// when
	r.Drop(ctx, "s1")
	r.Drop(ctx, "never-seen")

	// then
	assert.Equal(t, int32(1), closed.Load())
	assert.Zero(t, r.Len())
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, r.Get(ctx, "s1").Auth.IsAuthenticated(), "a dropped id restores nothing")
	assert.Equal(t, int32(2), built.Load())
}
