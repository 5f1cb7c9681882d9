// Package listing holds the fetched product collection with its loading and error state and runs the delete flow.
package listing

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/refresh"
)

// Status is the list state machine: loading -> ready | error, and back to loading on refresh or delete.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

const (
	deletePrompt = "Are you sure you want to delete this product?"
	loadFailed   = "Failed to load products. Please check server connection."
)

// Repository is the part of the catalog client the list reads and deletes through.
type Repository interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Delete(ctx context.Context, id string) (catalog.DeleteOutcome, error)
}

// Confirmer is the blocking confirm affordance asked before a delete is dispatched.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// State is the only observable state of the list. Items always reflect the last successful fetch.
type State struct {
	Status  Status            `json:"status"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
	Items   []catalog.Product `json:"items"`
}

// Controller fetches and holds the collection. Overlapping refreshes are sequenced: a newer refresh
// cancels the request of an older one and a stale response is discarded.
type Controller struct {
	mu     sync.Mutex
	repo   Repository
	logger *slog.Logger

	status Status
	err    string
	items  []catalog.Product
	loaded bool

	generation uint64
	cancel     context.CancelFunc
	synced     refresh.Version
}

func NewController(repo Repository, logger *slog.Logger) *Controller {
	return &Controller{
		repo:   repo,
		logger: logger.With("component", "listing"),
		status: StatusLoading,
		items:  []catalog.Product{},
	}
}

// Refresh fetches the full collection and returns the resulting state.
func (c *Controller) Refresh(ctx context.Context) State {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.status = StatusLoading
	c.mu.Unlock()
	defer cancel()

	items, err := c.repo.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.DebugContext(ctx, "discarding superseded list response", "generation", gen)
		return c.stateLocked()
	}
	c.cancel = nil
	if err != nil {
		c.status = StatusError
		c.err = loadFailed
		c.logger.WarnContext(ctx, "list refresh failed", "error", err)
		return c.stateLocked()
	}
	if items == nil {
		items = []catalog.Product{}
	}
	c.status = StatusReady
	c.err = ""
	c.items = items
	c.loaded = true
	return c.stateLocked()
}

// Reset drops the held collection and abandons any in-flight fetch. The next EnsureLoaded fetches again.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.status = StatusLoading
	c.err = ""
	c.items = []catalog.Product{}
	c.loaded = false
}

// EnsureLoaded refreshes once if no fetch has succeeded yet.
func (c *Controller) EnsureLoaded(ctx context.Context) State {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return c.State()
	}
	return c.Refresh(ctx)
}

// Sync refreshes when v differs from the last version this controller acted on.
func (c *Controller) Sync(ctx context.Context, v refresh.Version) State {
	c.mu.Lock()
	if v == c.synced {
		c.mu.Unlock()
		return c.State()
	}
	c.synced = v
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// DeleteResult tells whether the user confirmed and, if so, how the delete went.
type DeleteResult struct {
	Confirmed bool
	Outcome   catalog.DeleteOutcome
	State     State
}

// Delete asks confirm and, once confirmed, deletes id. Success and an already-gone product both
// refresh the list; any other failure leaves the items untouched and surfaces the message.
func (c *Controller) Delete(ctx context.Context, id string, confirm Confirmer) DeleteResult {
	if !confirm.Confirm(ctx, deletePrompt) {
		return DeleteResult{State: c.State()}
	}

	c.mu.Lock()
	c.status = StatusLoading
	c.mu.Unlock()

	outcome, err := c.repo.Delete(ctx, id)
	if err != nil {
		c.mu.Lock()
		c.status = StatusError
		c.err = deleteMessage(err)
		st := c.stateLocked()
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "delete failed", "product_id", id, "error", err)
		return DeleteResult{Confirmed: true, State: st}
	}
	if outcome == catalog.AlreadyGone {
		c.logger.InfoContext(ctx, "product already gone", "product_id", id)
	}
	return DeleteResult{Confirmed: true, Outcome: outcome, State: c.Refresh(ctx)}
}

func deleteMessage(err error) string {
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) {
		return "Failed to delete product: " + apiErr.Message
	}
	return "Failed to delete product: " + catalog.Message(err)
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Find returns the held product with id, if any.
func (c *Controller) Find(id string) (catalog.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.items, func(p catalog.Product) bool { return p.ID == id })
	if i < 0 {
		return catalog.Product{}, false
	}
	return c.items[i], true
}

func (c *Controller) stateLocked() State {
	msg := ""
	if c.status == StatusError {
		msg = c.err
	}
	items := slices.Clone(c.items)
	if items == nil {
		items = []catalog.Product{}
	}
	return State{
		Status:  c.status,
		Loading: c.status == StatusLoading,
		Error:   msg,
		Items:   items,
	}
}
