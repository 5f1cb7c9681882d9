// Package session keeps the authentication state of each browser session and the workspace built around it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/go-playground/validator/v10"
)

// State of an AuthSession.
type State string

const (
	Anonymous     State = "anonymous"
	Authenticated State = "authenticated"
)

const (
	loginFailedMessage    = "Login failed. Please try again."
	registerFailedMessage = "Registration failed. Please try again."
	registeredMessage     = "Registration successful!"
)

// Authenticator is the part of the catalog client that issues tokens and creates accounts.
type Authenticator interface {
	Login(ctx context.Context, creds catalog.Credentials) (string, error)
	Register(ctx context.Context, reg catalog.Registration) error
}

// ExpiryChecker tells whether a token is past its expiry.
type ExpiryChecker interface {
	Expired(token string, now time.Time) bool
}

// FailureError is a rejected login or registration, carrying the message to show.
type FailureError struct {
	Message string
	Err     error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// AuthSession is the two-state machine anonymous <-> authenticated of one browser session.
// It moves to authenticated only through a successful login or a restore of a persisted,
// unexpired token, and back through Logout or CheckExpiry.
type AuthSession struct {
	mu       sync.Mutex
	id       string
	state    State
	token    string
	api      Authenticator
	store    TokenStore
	expiry   ExpiryChecker
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	onChange func(context.Context, State)
}

type AuthOption func(*AuthSession)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthSession) { s.now = now }
}

// NewAuthSession returns an anonymous session identified by id.
func NewAuthSession(id string, api Authenticator, store TokenStore, expiry ExpiryChecker, validate *validator.Validate, logger *slog.Logger, opts ...AuthOption) *AuthSession {
	s := &AuthSession{
		id:       id,
		state:    Anonymous,
		api:      api,
		store:    store,
		expiry:   expiry,
		validate: validate,
		logger:   logger.With("component", "auth", "session_id", id),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a callback run after every login and logout, expiry included, without the lock held.
func (s *AuthSession) OnChange(fn func(context.Context, State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *AuthSession) changed(ctx context.Context, st State) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(ctx, st)
	}
}

// ID returns the browser session id.
func (s *AuthSession) ID() string {
	return s.id
}

// State returns the current state.
func (s *AuthSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated reports whether the session is authenticated.
func (s *AuthSession) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Token returns the bearer token, empty while anonymous. It makes the session a catalog.TokenSource.
func (s *AuthSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Login validates creds, exchanges them for a token and persists it. Invalid input is returned as
// validation.FieldErrors; a rejection or a persistence failure as *FailureError.
func (s *AuthSession) Login(ctx context.Context, creds catalog.Credentials) error {
	if err := s.validate.Struct(creds); err != nil {
		if fe, ok := validation.FromError(err, nil); ok {
			return fe
		}
		return err
	}
	token, err := s.api.Login(ctx, creds)
	if err != nil {
		msg := loginFailedMessage
		var apiErr *catalog.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != "" {
			msg = apiErr.Reason
		}
		s.logger.WarnContext(ctx, "login rejected", "error", err)
		return &FailureError{Message: msg, Err: err}
	}
	if err := s.store.Save(ctx, s.id, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist token", "error", err)
		return &FailureError{Message: loginFailedMessage, Err: err}
	}

	s.mu.Lock()
	s.state = Authenticated
	s.token = token
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "session authenticated")
	s.changed(ctx, Authenticated)
	return nil
}

// Logout clears the persisted token and returns to anonymous. The in-memory state is cleared even
// when the store fails; the error is returned for logging.
func (s *AuthSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.state = Anonymous
	s.token = ""
	s.mu.Unlock()
	s.changed(ctx, Anonymous)
	if err := s.store.Delete(ctx, s.id); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted token", "error", err)
		return err
	}
	s.logger.InfoContext(ctx, "session logged out")
	return nil
}

// Restore re-derives the state from the persisted token after a reload or restart.
// An expired token is discarded and the session stays anonymous.
func (s *AuthSession) Restore(ctx context.Context) (bool, error) {
	token, err := s.store.Load(ctx, s.id)
	if errors.Is(err, ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.expiry.Expired(token, s.now()) {
		s.logger.InfoContext(ctx, "persisted token expired")
		if err := s.store.Delete(ctx, s.id); err != nil {
			s.logger.WarnContext(ctx, "failed to clear expired token", "error", err)
		}
		return false, nil
	}
	s.mu.Lock()
	s.state = Authenticated
	s.token = token
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "session restored")
	return true, nil
}

// CheckExpiry logs the session out when its token has expired. It returns whether the session is still authenticated.
func (s *AuthSession) CheckExpiry(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != Authenticated {
		s.mu.Unlock()
		return false
	}
	expired := s.expiry.Expired(s.token, s.now())
	s.mu.Unlock()
	if !expired {
		return true
	}
	s.logger.InfoContext(ctx, "token expired")
	_ = s.Logout(ctx)
	return false
}

// Register validates reg and creates the account. The session is not logged in afterwards.
// It returns the success message to show.
func (s *AuthSession) Register(ctx context.Context, reg catalog.Registration) (string, error) {
	if err := s.validate.Struct(reg); err != nil {
		if fe, ok := validation.FromError(err, nil); ok {
			return "", fe
		}
		return "", err
	}
	if err := s.api.Register(ctx, reg); err != nil {
		msg := registerFailedMessage
		var apiErr *catalog.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != "" {
			msg = apiErr.Reason
		}
		s.logger.WarnContext(ctx, "registration rejected", "error", err)
		return "", &FailureError{Message: msg, Err: err}
	}
	s.logger.InfoContext(ctx, "account registered")
	return registeredMessage, nil
}
