package editor

import (
	"maps"

	"github.com/abgdnv/inventory-console/internal/attachments"
)

// Mode tells whether a submit creates or updates.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// State is a snapshot of the draft for rendering.
type State struct {
	Mode           Mode                        `json:"mode"`
	ProductID      string                      `json:"productId,omitempty"`
	SKU            string                      `json:"sku"`
	Name           string                      `json:"name"`
	Price          string                      `json:"price"`
	ExistingImages []attachments.ExistingImage `json:"existingImages"`
	NewFiles       []attachments.StagedFile    `json:"newFiles"`
	Errors         map[string]string           `json:"errors"`
	SubmitError    string                      `json:"submitError,omitempty"`
	Submitting     bool                        `json:"submitting"`
	FileInputKey   uint64                      `json:"fileInputKey"`
}

// State returns a copy of the current draft.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	mode := ModeCreate
	if c.productID != "" {
		mode = ModeEdit
	}
	return State{
		Mode:           mode,
		ProductID:      c.productID,
		SKU:            c.fields.SKU,
		Name:           c.fields.Name,
		Price:          c.fields.Price,
		ExistingImages: c.images.Existing(),
		NewFiles:       c.images.Staged(),
		Errors:         maps.Clone(map[string]string(c.errors)),
		SubmitError:    c.submitErr,
		Submitting:     c.submitting,
		FileInputKey:   c.inputKey,
	}
}
