package rest

import (
	"context"
	"net/http"

	"github.com/abgdnv/inventory-console/internal/session"
	"github.com/abgdnv/inventory-console/pkg/config"
)

type contextKey string

const workspaceContextKey = contextKey("workspace")

// Workspaces resolves the workspace of a session id.
type Workspaces interface {
	NewID() string
	ValidID(id string) bool
	Get(ctx context.Context, id string) *session.Workspace
	Drop(ctx context.Context, id string)
}

// SessionMiddleware binds every request to the workspace named by the session cookie,
// issuing a new cookie to browsers that have none or send an id the server could not have issued.
func SessionMiddleware(workspaces Workspaces, cfg config.SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil && workspaces.ValidID(c.Value) {
				id = c.Value
			} else {
				id = workspaces.NewID()
				setSessionCookie(w, cfg, id)
			}
			ws := workspaces.Get(r.Context(), id)
			ctx := context.WithValue(r.Context(), workspaceContextKey, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setSessionCookie(w http.ResponseWriter, cfg config.SessionConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ContextWorkspace retrieves the workspace bound by SessionMiddleware.
func ContextWorkspace(ctx context.Context) *session.Workspace {
	ws, _ := ctx.Value(workspaceContextKey).(*session.Workspace)
	return ws
}
