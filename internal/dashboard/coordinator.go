// Package dashboard composes the editor and the list of one workspace. It alone owns the selected
// product and the refresh signal, so the two controllers stay consistent without knowing each other.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/editor"
	"github.com/abgdnv/inventory-console/internal/listing"
	"github.com/abgdnv/inventory-console/internal/refresh"
)

// ErrNotInList is returned by Select for an id absent from the last fetched list.
var ErrNotInList = errors.New("product is not in the current list")

// Coordinator wires completion of the editor to the refresh signal and the list.
type Coordinator struct {
	mu       sync.Mutex
	editor   *editor.Controller
	list     *listing.Controller
	signal   *refresh.Signal
	logger   *slog.Logger
	selected *catalog.Product
}

// New composes ed and list around signal and takes over the editor's completion callback.
func New(ed *editor.Controller, list *listing.Controller, signal *refresh.Signal, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		editor: ed,
		list:   list,
		signal: signal,
		logger: logger.With("component", "dashboard"),
	}
	ed.OnSubmitted(c.submitted)
	return c
}

// Select puts the product with id into the editor. The draft is always re-seeded, discarding any
// unsaved input of the previous selection.
func (c *Coordinator) Select(ctx context.Context, id string) error {
	p, ok := c.list.Find(id)
	if !ok {
		return ErrNotInList
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = &p
	c.editor.LoadForEdit(&p)
	c.logger.DebugContext(ctx, "product selected", "product_id", id)
	return nil
}

// Deselect returns the editor to create mode.
func (c *Coordinator) Deselect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
	c.editor.LoadForEdit(nil)
	c.logger.DebugContext(ctx, "selection cleared")
}

// Reset forgets everything fetched or typed under the previous authentication: the selection,
// the draft and the list. It runs whenever the session logs in or out.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
	c.editor.LoadForEdit(nil)
	c.list.Reset()
	c.logger.DebugContext(ctx, "workspace reset")
}

// Selected returns a copy of the selected product, or nil in create mode.
func (c *Coordinator) Selected() *catalog.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	p := *c.selected
	return &p
}

func (c *Coordinator) submitted(ctx context.Context, done editor.Completion) {
	c.mu.Lock()
	v := c.signal.Fire()
	if !done.Superseded {
		c.selected = nil
	}
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "submission completed", "product_id", done.ProductID, "version", v)
	c.list.Sync(ctx, v)
}

// Refresh is the manual retry affordance of the list.
func (c *Coordinator) Refresh(ctx context.Context) listing.State {
	return c.list.Refresh(ctx)
}

// Delete runs the list's delete flow. A product that is gone afterwards is also dropped from the editor.
func (c *Coordinator) Delete(ctx context.Context, id string, confirm listing.Confirmer) listing.DeleteResult {
	res := c.list.Delete(ctx, id, confirm)
	if !res.Confirmed || !c.isGone(id) {
		return res
	}
	c.mu.Lock()
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
		c.editor.LoadForEdit(nil)
	}
	c.mu.Unlock()
	return res
}

func (c *Coordinator) isGone(id string) bool {
	_, ok := c.list.Find(id)
	return !ok
}

// View is everything a dashboard renders.
type View struct {
	Selected *catalog.Product `json:"selected"`
	Draft    editor.State     `json:"draft"`
	List     listing.State    `json:"list"`
	Version  refresh.Version  `json:"refreshVersion"`
}

// View loads the list on first use, catches it up with the refresh signal and returns a snapshot.
func (c *Coordinator) View(ctx context.Context) View {
	c.list.EnsureLoaded(ctx)
	v := c.signal.Version()
	list := c.list.Sync(ctx, v)
	return View{
		Selected: c.Selected(),
		Draft:    c.editor.State(),
		List:     list,
		Version:  v,
	}
}

// Editor exposes the draft operations.
func (c *Coordinator) Editor() *editor.Controller {
	return c.editor
}

// Signal exposes the refresh signal for subscribers.
func (c *Coordinator) Signal() *refresh.Signal {
	return c.signal
}
