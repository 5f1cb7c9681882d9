package session

import (
	"context"
	"errors"
)

// ErrNoToken is returned by TokenStore.Load when nothing is persisted for the session.
var ErrNoToken = errors.New("no token persisted for session")

// TokenStore persists bearer tokens per browser session so they survive reloads and restarts.
type TokenStore interface {
	// Load returns the token saved for sessionID, or ErrNoToken.
	Load(ctx context.Context, sessionID string) (string, error)
	// Save stores token for sessionID, replacing any previous one.
	Save(ctx context.Context, sessionID, token string) error
	// Delete removes the token for sessionID. Deleting a missing token is not an error.
	Delete(ctx context.Context, sessionID string) error
}
