// Package editor holds the draft of one product being created or edited and submits it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abgdnv/inventory-console/internal/attachments"
	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/go-playground/validator/v10"
)

// Field names a scalar draft field.
type Field string

const (
	FieldSKU   Field = "sku"
	FieldName  Field = "name"
	FieldPrice Field = "price"
)

func (f Field) known() bool {
	return f == FieldSKU || f == FieldName || f == FieldPrice
}

var (
	// ErrUnknownField is returned by SetField for a name that is not a draft field.
	ErrUnknownField = errors.New("unknown draft field")
	// ErrSubmitInProgress is reported when a submit is started while another is in flight.
	ErrSubmitInProgress = errors.New("a submission is already in progress")
)

var fieldMessages = validation.Messages{
	string(FieldSKU):   "SKU is required",
	string(FieldName):  "Name is required",
	string(FieldPrice): "Valid price required",
}

// Repository is the part of the catalog client the editor writes through.
type Repository interface {
	Create(ctx context.Context, form catalog.ProductForm) error
	Update(ctx context.Context, id string, form catalog.ProductForm) error
}

// Completion describes a successful submission.
type Completion struct {
	ProductID string
	Created   bool
	// Superseded is set when the draft was reloaded while the submission was in flight.
	Superseded bool
}

// draft is the validated shape of the scalar fields.
type draft struct {
	SKU   string `json:"sku"   validate:"notblank"`
	Name  string `json:"name"  validate:"notblank"`
	Price string `json:"price" validate:"price"`
}

// Controller owns one draft. All methods are safe for concurrent use; Submit releases the lock
// while the remote call is in flight.
type Controller struct {
	mu       sync.Mutex
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger

	productID  string
	fields     draft
	images     *attachments.Set
	errors     validation.FieldErrors
	submitErr  string
	submitting bool
	// generation changes on every LoadForEdit so an in-flight submit can tell its draft was replaced.
	generation uint64
	// inputKey is handed to views to reset their file input after a successful submit.
	inputKey uint64

	onSubmitted func(context.Context, Completion)
}

// NewController returns a controller in create mode with an empty draft.
func NewController(repo Repository, validate *validator.Validate, logger *slog.Logger, opts ...attachments.Option) *Controller {
	return &Controller{
		repo:     repo,
		validate: validate,
		logger:   logger.With("component", "editor"),
		images:   attachments.New(nil, opts...),
		errors:   validation.FieldErrors{},
	}
}

// OnSubmitted registers the completion callback. It runs after the draft was reset, without the lock held.
func (c *Controller) OnSubmitted(fn func(context.Context, Completion)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSubmitted = fn
}

// LoadForEdit replaces the draft. A product seeds the fields and existing images; nil yields an empty
// create-mode draft. Staged files, field errors and the submit error are always cleared.
func (c *Controller) LoadForEdit(p *catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(p)
}

func (c *Controller) loadLocked(p *catalog.Product) {
	c.generation++
	c.errors = validation.FieldErrors{}
	c.submitErr = ""
	if p == nil {
		c.productID = ""
		c.fields = draft{}
		c.images.Reset(nil)
		return
	}
	c.productID = p.ID
	c.fields = draft{SKU: p.SKU, Name: p.Name, Price: p.Price}
	c.images.Reset(p.Images)
}

// SetField updates one scalar field and clears its validation error.
func (c *Controller) SetField(name Field, value string) error {
	return c.SetFields(map[Field]string{name: value})
}

// SetFields applies all values or none: an unknown name leaves the draft untouched.
func (c *Controller) SetFields(values map[Field]string) error {
	for name := range values {
		if !name.known() {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, value := range values {
		switch name {
		case FieldSKU:
			c.fields.SKU = value
		case FieldName:
			c.fields.Name = value
		case FieldPrice:
			c.fields.Price = value
		}
		delete(c.errors, string(name))
	}
	return nil
}

// StageFile appends f to the files to upload and returns its key.
func (c *Controller) StageFile(f attachments.File) attachments.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.Stage(f)
}

// RemoveExisting excludes an existing image from the surviving list.
func (c *Controller) RemoveExisting(key attachments.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.RemoveExisting(key)
}

// RemoveNewFile drops a staged file.
func (c *Controller) RemoveNewFile(key attachments.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.RemoveStaged(key)
}

// SubmitResult reports the outcome of Submit. Exactly one of Submitted, a non-empty Errors, or a
// non-empty Message describes what happened.
type SubmitResult struct {
	Submitted bool
	Errors    validation.FieldErrors
	Message   string
}

// Submit validates the draft and, when valid, creates or updates the product. Invalid drafts never reach
// the network. On success the draft is reset to create mode and the completion callback runs; on failure
// the draft is kept and the message is exposed in State.
func (c *Controller) Submit(ctx context.Context) SubmitResult {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return SubmitResult{Message: ErrSubmitInProgress.Error()}
	}
	if errs := c.validateLocked(); len(errs) > 0 {
		c.errors = errs
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "draft rejected", "errors", errs)
		return SubmitResult{Errors: errs}
	}
	id, gen := c.productID, c.generation
	form := c.formLocked()
	c.submitting = true
	c.submitErr = ""
	c.mu.Unlock()

	var err error
	if id == "" {
		err = c.repo.Create(ctx, form)
	} else {
		err = c.repo.Update(ctx, id, form)
	}

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		msg := catalog.Message(err)
		if c.generation == gen {
			c.submitErr = msg
		}
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "submit failed", "product_id", id, "error", err)
		return SubmitResult{Message: msg}
	}
	done := Completion{ProductID: id, Created: id == "", Superseded: c.generation != gen}
	if !done.Superseded {
		c.loadLocked(nil)
		c.inputKey++
	}
	notify := c.onSubmitted
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "product submitted", "product_id", id, "created", done.Created)
	if notify != nil {
		notify(ctx, done)
	}
	return SubmitResult{Submitted: true}
}

func (c *Controller) validateLocked() validation.FieldErrors {
	err := c.validate.Struct(c.fields)
	if err == nil {
		return nil
	}
	if errs, ok := validation.FromError(err, fieldMessages); ok {
		return errs
	}
	return validation.FieldErrors{"_": err.Error()}
}

func (c *Controller) formLocked() catalog.ProductForm {
	staged := c.images.Staged()
	uploads := make([]catalog.Upload, 0, len(staged))
	for _, f := range staged {
		uploads = append(uploads, catalog.Upload{Filename: f.Filename, ContentType: f.ContentType, Data: f.Data()})
	}
	return catalog.ProductForm{
		SKU:            c.fields.SKU,
		Name:           c.fields.Name,
		Price:          c.fields.Price,
		ExistingImages: c.images.SurvivingURLs(),
		Images:         uploads,
	}
}
