package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/inventory-console/internal/dashboard"
	"github.com/google/uuid"
)

// Workspace is everything one browser session works with.
type Workspace struct {
	ID        string
	Auth      *AuthSession
	Dashboard *dashboard.Coordinator

	// Close releases background work bound to the workspace; may be nil.
	Close func()

	lastSeen time.Time

	restoreMu sync.Mutex
	restored  bool
}

// NewWorkspace binds auth and dash so that every login and logout resets the dashboard.
func NewWorkspace(id string, auth *AuthSession, dash *dashboard.Coordinator, closeFn func()) *Workspace {
	auth.OnChange(func(ctx context.Context, _ State) { dash.Reset(ctx) })
	return &Workspace{
		ID:        id,
		Auth:      auth,
		Dashboard: dash,
		Close:     closeFn,
	}
}

// restore loads the persisted token until one attempt completes without a store error.
func (ws *Workspace) restore(ctx context.Context, logger *slog.Logger) {
	ws.restoreMu.Lock()
	defer ws.restoreMu.Unlock()
	if ws.restored {
		return
	}
	if _, err := ws.Auth.Restore(ctx); err != nil {
		logger.WarnContext(ctx, "failed to restore session", "session_id", ws.ID, "error", err)
		return
	}
	ws.restored = true
}

// Builder creates the workspace for a session id.
type Builder func(ctx context.Context, id string) *Workspace

// Registry holds the live workspaces keyed by session id and evicts the idle ones.
// Tokens live in the TokenStore, so an evicted workspace is rebuilt and restored on its next request.
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	build      Builder
	idleTTL    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewRegistry(build Builder, idleTTL time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		workspaces: make(map[string]*Workspace),
		build:      build,
		idleTTL:    idleTTL,
		now:        time.Now,
		logger:     logger.With("component", "registry"),
	}
}

// NewID returns a fresh session id.
func (r *Registry) NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID issues.
func (r *Registry) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the workspace for id, building it and restoring its authentication on first use.
func (r *Registry) Get(ctx context.Context, id string) *Workspace {
	r.mu.Lock()
	ws, ok := r.workspaces[id]
	if !ok {
		ws = r.build(ctx, id)
		r.workspaces[id] = ws
	}
	ws.lastSeen = r.now()
	r.mu.Unlock()

	ws.restore(ctx, r.logger)
	return ws
}

// Drop retires id: its persisted token is deleted and its workspace closed. The id restores nothing afterwards.
func (r *Registry) Drop(ctx context.Context, id string) {
	r.mu.Lock()
	ws, ok := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := ws.Auth.Logout(ctx); err != nil {
		r.logger.WarnContext(ctx, "failed to clear token of dropped session", "session_id", id, "error", err)
	}
	if ws.Close != nil {
		ws.Close()
	}
}

// Evict closes and drops workspaces idle for longer than the TTL. It returns how many were dropped.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idleTTL)
	var idle []*Workspace
	r.mu.Lock()
	for id, ws := range r.workspaces {
		if ws.lastSeen.Before(cutoff) {
			idle = append(idle, ws)
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()
	for _, ws := range idle {
		if ws.Close != nil {
			ws.Close()
		}
	}
	return len(idle)
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Run evicts idle workspaces periodically until ctx is done, then closes all of them.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.logger.DebugContext(ctx, "evicted idle workspaces", "count", n)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range all {
		if ws.Close != nil {
			ws.Close()
		}
	}
}
