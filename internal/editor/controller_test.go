package editor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/abgdnv/inventory-console/internal/attachments"
	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, form catalog.ProductForm) error {
	args := m.Called(ctx, form)
	return args.Error(0)
}

func (m *mockRepository) Update(ctx context.Context, id string, form catalog.ProductForm) error {
	args := m.Called(ctx, id, form)
	return args.Error(0)
}

func newController(repo Repository) *Controller {
	return NewController(repo, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var widget = catalog.Product{
	ID:     "p1",
	SKU:    "W-1",
	Name:   "Widget",
	Price:  "19.99",
	Images: []string{"http://img/1.png", "http://img/2.png", "http://img/3.png"},
}

func TestController_LoadThenSubmitReproducesProduct(t *testing.T) {
	// given
	repo := new(mockRepository)
	c := newController(repo)
	expected := catalog.ProductForm{
		SKU:            widget.SKU,
		Name:           widget.Name,
		Price:          widget.Price,
		ExistingImages: widget.Images,
		Images:         []catalog.Upload{},
	}
	repo.On("Update", mock.Anything, "p1", expected).Return(nil).Once()

	// when
	c.LoadForEdit(&widget)
	res := c.Submit(context.Background())

	// then
	assert.True(t, res.Submitted)
	repo.AssertExpectations(t)
}

func TestController_LoadForEditAbsentIsIdempotent(t *testing.T) {
	// given
	c := newController(new(mockRepository))
	c.LoadForEdit(&widget)
	c.StageFile(attachments.File{Filename: "a.png"})

	// when
	c.LoadForEdit(nil)
	once := c.State()
	c.LoadForEdit(nil)
	twice := c.State()

	// then
	assert.Equal(t, once, twice)
	assert.Equal(t, ModeCreate, once.Mode)
	assert.Empty(t, once.SKU)
	assert.Empty(t, once.ExistingImages)
	assert.Empty(t, once.NewFiles)
}

func TestController_SubmitValidation(t *testing.T) {
	testCases := []struct {
		name     string
		sku      string
		title    string
		price    string
		expected validation.FieldErrors
	}{
		{
			name:     "non-numeric price",
			sku:      "A",
			title:    "B",
			price:    "abc",
			expected: validation.FieldErrors{"price": "Valid price required"},
		},
		{
			name:     "negative price",
			sku:      "A",
			title:    "B",
			price:    "-3",
			expected: validation.FieldErrors{"price": "Valid price required"},
		},
		{
			name:  "everything blank",
			sku:   " ",
			title: "",
			price: "",
			expected: validation.FieldErrors{
				"sku":   "SKU is required",
				"name":  "Name is required",
				"price": "Valid price required",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			repo := new(mockRepository)
			c := newController(repo)
			require.NoError(t, c.SetField(FieldSKU, tc.sku))
			require.NoError(t, c.SetField(FieldName, tc.title))
			require.NoError(t, c.SetField(FieldPrice, tc.price))

			// when
			res := c.Submit(context.Background())

			// then
			assert.False(t, res.Submitted)
			assert.Equal(t, tc.expected, res.Errors)
			assert.Equal(t, map[string]string(tc.expected), c.State().Errors)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestController_SetFieldClearsItsError(t *testing.T) {
	// given
	c := newController(new(mockRepository))
	res := c.Submit(context.Background())
	require.Len(t, res.Errors, 3)

	// when
	require.NoError(t, c.SetField(FieldPrice, "still bad"))

	// then
	errs := c.State().Errors
	assert.NotContains(t, errs, "price", "mutating a field clears its error without revalidation")
	assert.Contains(t, errs, "sku")
	assert.Contains(t, errs, "name")
}

func TestController_SetFieldUnknown(t *testing.T) {
	c := newController(new(mockRepository))
	assert.ErrorIs(t, c.SetField("colour", "red"), ErrUnknownField)
}

func TestController_SetFieldsIsAllOrNothing(t *testing.T) {
	// given
	c := newController(new(mockRepository))
	require.Len(t, c.Submit(context.Background()).Errors, 3)
	before := c.State()

	// when
	err := c.SetFields(map[Field]string{FieldSKU: "X-1", "colour": "red"})

	// then
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, before, c.State())
	assert.Empty(t, c.State().SKU)
	assert.Contains(t, c.State().Errors, "sku")
}

func TestController_RemovedImagesAndStagedFileFormPayload(t *testing.T) {
	// given
	repo := new(mockRepository)
	c := newController(repo)
	c.LoadForEdit(&widget)
	existing := c.State().ExistingImages
	require.True(t, c.RemoveExisting(existing[0].Key))
	require.True(t, c.RemoveExisting(existing[2].Key))
	c.StageFile(attachments.File{Filename: "new.png", ContentType: "image/png", Data: []byte("PNG")})

	var sent catalog.ProductForm
	repo.On("Update", mock.Anything, "p1", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(catalog.ProductForm) }).
		Return(nil).Once()

	// when
	res := c.Submit(context.Background())

	// then
	require.True(t, res.Submitted)
	assert.Equal(t, []string{"http://img/2.png"}, sent.ExistingImages)
	require.Len(t, sent.Images, 1)
	assert.Equal(t, "new.png", sent.Images[0].Filename)
	assert.Equal(t, []byte("PNG"), sent.Images[0].Data)
}

func TestController_RemovalsAreDisjoint(t *testing.T) {
	// given
	c := newController(new(mockRepository))
	c.LoadForEdit(&widget)
	k := c.StageFile(attachments.File{Filename: "a.png"})
	c.StageFile(attachments.File{Filename: "b.png"})

	// when
	existingBefore := c.State().ExistingImages
	require.True(t, c.RemoveNewFile(k))
	afterFileRemoval := c.State()
	require.True(t, c.RemoveExisting(existingBefore[1].Key))
	afterImageRemoval := c.State()

	// then
	assert.Equal(t, existingBefore, afterFileRemoval.ExistingImages)
	assert.Equal(t, afterFileRemoval.NewFiles, afterImageRemoval.NewFiles)
	assert.Len(t, afterImageRemoval.ExistingImages, 2)
}

func TestController_SuccessResetsDraftAndNotifies(t *testing.T) {
	// given
	repo := new(mockRepository)
	c := newController(repo)
	var got []Completion
	c.OnSubmitted(func(_ context.Context, done Completion) { got = append(got, done) })
	require.NoError(t, c.SetField(FieldSKU, "N-1"))
	require.NoError(t, c.SetField(FieldName, "New"))
	require.NoError(t, c.SetField(FieldPrice, "3"))
	c.StageFile(attachments.File{Filename: "a.png"})
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	keyBefore := c.State().FileInputKey

	// when
	res := c.Submit(context.Background())

	// then
	require.True(t, res.Submitted)
	st := c.State()
	assert.Equal(t, ModeCreate, st.Mode)
	assert.Empty(t, st.SKU)
	assert.Empty(t, st.NewFiles)
	assert.NotEqual(t, keyBefore, st.FileInputKey)
	assert.Equal(t, []Completion{{Created: true}}, got)
}

func TestController_FailurePreservesDraft(t *testing.T) {
	// given
	repo := new(mockRepository)
	c := newController(repo)
	called := false
	c.OnSubmitted(func(context.Context, Completion) { called = true })
	c.LoadForEdit(&widget)
	require.NoError(t, c.SetField(FieldName, "Renamed"))
	c.StageFile(attachments.File{Filename: "a.png"})
	repo.On("Update", mock.Anything, "p1", mock.Anything).
		Return(&catalog.APIError{Op: "update", Status: 409, Message: "SKU already exists"}).Once()

	// when
	res := c.Submit(context.Background())

	// then
	assert.False(t, res.Submitted)
	assert.Equal(t, "SKU already exists", res.Message)
	st := c.State()
	assert.Equal(t, "SKU already exists", st.SubmitError)
	assert.Equal(t, "Renamed", st.Name)
	assert.Len(t, st.NewFiles, 1)
	assert.Equal(t, ModeEdit, st.Mode)
	assert.False(t, called)
}

func TestController_ReloadDuringSubmitKeepsNewDraft(t *testing.T) {
	// given
	repo := new(mockRepository)
	c := newController(repo)
	var got Completion
	c.OnSubmitted(func(_ context.Context, done Completion) { got = done })
	c.LoadForEdit(&widget)
	other := catalog.Product{ID: "p2", SKU: "O-2", Name: "Other", Price: "1"}
	repo.On("Update", mock.Anything, "p1", mock.Anything).
		Run(func(mock.Arguments) { c.LoadForEdit(&other) }).
		Return(nil).Once()

	// when
	res := c.Submit(context.Background())

	// then
	assert.True(t, res.Submitted)
	assert.True(t, got.Superseded)
	assert.Equal(t, "p2", c.State().ProductID)
}
