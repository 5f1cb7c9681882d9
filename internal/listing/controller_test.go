package listing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) List(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	var products []catalog.Product
	if v := args.Get(0); v != nil {
		products = v.([]catalog.Product)
	}
	return products, args.Error(1)
}

func (m *mockRepository) Delete(ctx context.Context, id string) (catalog.DeleteOutcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(catalog.DeleteOutcome), args.Error(1)
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, prompt string) bool {
	return m.Called(ctx, prompt).Bool(0)
}

func newController(repo Repository) *Controller {
	return NewController(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	productA = catalog.Product{ID: "a", SKU: "A-1", Name: "Alpha", Price: "1", Images: []string{}}
	productB = catalog.Product{ID: "b", SKU: "B-1", Name: "Beta", Price: "2", Images: []string{}}
	yes      = ConfirmFunc(func(context.Context, string) bool { return true })
)

func TestController_Refresh(t *testing.T) {
	testCases := []struct {
		name     string
		items    []catalog.Product
		err      error
		expected State
	}{
		{
			name:     "ready",
			items:    []catalog.Product{productA},
			expected: State{Status: StatusReady, Items: []catalog.Product{productA}},
		},
		{
			name:     "nil items become empty",
			items:    nil,
			expected: State{Status: StatusReady, Items: []catalog.Product{}},
		},
		{
			name:     "api error shows retryable message",
			err:      &catalog.APIError{Op: "list", Status: http.StatusBadGateway, Message: "upstream down"},
			expected: State{Status: StatusError, Error: loadFailed, Items: []catalog.Product{}},
		},
		{
			name:     "transport error shows retryable message",
			err:      &catalog.TransportError{Op: "list", Err: io.ErrUnexpectedEOF},
			expected: State{Status: StatusError, Error: loadFailed, Items: []catalog.Product{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			repo := new(mockRepository)
			repo.On("List", mock.Anything).Return(tc.items, tc.err).Once()
			c := newController(repo)

			// when
			st := c.Refresh(context.Background())

			// then
			assert.Equal(t, tc.expected, st)
			assert.Equal(t, tc.expected, c.State())
			repo.AssertExpectations(t)
		})
	}
}

func TestController_InitialStateIsLoading(t *testing.T) {
	st := newController(new(mockRepository)).State()
	assert.Equal(t, StatusLoading, st.Status)
	assert.True(t, st.Loading)
	assert.NotNil(t, st.Items)
}

func TestController_ErrorThenRetry(t *testing.T) {
	// given
	repo := new(mockRepository)
	repo.On("List", mock.Anything).Return(nil, &catalog.TransportError{Op: "list", Err: io.ErrUnexpectedEOF}).Once()
	repo.On("List", mock.Anything).Return([]catalog.Product{productA}, nil).Once()
	c := newController(repo)

	// when
	first := c.Refresh(context.Background())
	second := c.Refresh(context.Background())

	// then
	assert.Equal(t, StatusError, first.Status)
	assert.NotEmpty(t, first.Error)
	assert.Equal(t, StatusReady, second.Status)
	assert.Empty(t, second.Error)
	assert.Equal(t, []catalog.Product{productA}, second.Items)
}

func TestController_NewerRefreshWins(t *testing.T) {
	// given
	repo := new(mockRepository)
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	repo.On("List", mock.Anything).
		Run(func(args mock.Arguments) {
			close(firstStarted)
			ctx := args.Get(0).(context.Context)
			select {
			case <-ctx.Done():
			case <-release:
			}
		}).
		Return([]catalog.Product{productA}, nil).Once()
	repo.On("List", mock.Anything).Return([]catalog.Product{productB}, nil).Once()
	c := newController(repo)

	// when
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Refresh(context.Background())
	}()
	<-firstStarted
	latest := c.Refresh(context.Background())
	close(release)
	wg.Wait()

	// then
	assert.Equal(t, []catalog.Product{productB}, latest.Items)
	assert.Equal(t, []catalog.Product{productB}, c.State().Items, "the older response must not overwrite the newer one")
}

func TestController_ResetForgetsItems(t *testing.T) {
	// given
	repo := new(mockRepository)
	repo.On("List", mock.Anything).Return([]catalog.Product{productA}, nil).Once()
	repo.On("List", mock.Anything).Return([]catalog.Product{productA, productB}, nil).Once()
	c := newController(repo)
	c.EnsureLoaded(context.Background())

	// when
	c.Reset()
	reset := c.State()
	reloaded := c.EnsureLoaded(context.Background())

	// then
	assert.Equal(t, State{Status: StatusLoading, Loading: true, Items: []catalog.Product{}}, reset)
	_, found := c.Find(productB.ID)
	assert.True(t, found)
	assert.Equal(t, []catalog.Product{productA, productB}, reloaded.Items)
	repo.AssertExpectations(t)
}

func TestController_ResetDiscardsInFlightFetch(t *testing.T) {
	// given
	repo := new(mockRepository)
	started := make(chan struct{})
	repo.On("List", mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return([]catalog.Product{productA}, nil).Once()
	c := newController(repo)

	// when
	done := make(chan State, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-started
	c.Reset()

	// then
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
	assert.Empty(t, c.State().Items)
	assert.Equal(t, StatusLoading, c.State().Status)
}

func TestController_Delete(t *testing.T) {
	testCases := []struct {
		name          string
		outcome       catalog.DeleteOutcome
		err           error
		expectRefresh bool
		expectedState State
	}{
		{
			name:          "deleted refreshes",
			outcome:       catalog.Deleted,
			expectRefresh: true,
			expectedState: State{Status: StatusReady, Items: []catalog.Product{productB}},
		},
		{
			name:          "already gone refreshes without error",
			outcome:       catalog.AlreadyGone,
			expectRefresh: true,
			expectedState: State{Status: StatusReady, Items: []catalog.Product{productB}},
		},
		{
			name: "server error leaves list untouched",
			err:  &catalog.APIError{Op: "delete", Status: http.StatusInternalServerError, Message: "boom"},
			expectedState: State{
				Status: StatusError,
				Error:  "Failed to delete product: boom",
				Items:  []catalog.Product{productA, productB},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			repo := new(mockRepository)
			repo.On("List", mock.Anything).Return([]catalog.Product{productA, productB}, nil).Once()
			c := newController(repo)
			c.Refresh(context.Background())

			repo.On("Delete", mock.Anything, "a").Return(tc.outcome, tc.err).Once()
			if tc.expectRefresh {
				repo.On("List", mock.Anything).Return([]catalog.Product{productB}, nil).Once()
			}

			// when
			res := c.Delete(context.Background(), "a", yes)

			// then
			assert.True(t, res.Confirmed)
			assert.Equal(t, tc.expectedState, res.State)
			repo.AssertExpectations(t)
			repo.AssertNumberOfCalls(t, "List", map[bool]int{true: 2, false: 1}[tc.expectRefresh])
		})
	}
}

func TestController_DeleteRequiresConfirmation(t *testing.T) {
	// given
	repo := new(mockRepository)
	confirm := new(mockConfirmer)
	confirm.On("Confirm", mock.Anything, deletePrompt).Return(false).Once()
	c := newController(repo)

	// when
	res := c.Delete(context.Background(), "a", confirm)

	// then
	assert.False(t, res.Confirmed)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	confirm.AssertExpectations(t)
}

func TestController_SyncRefreshesOnVersionChangeOnly(t *testing.T) {
	// given
	repo := new(mockRepository)
	repo.On("List", mock.Anything).Return([]catalog.Product{productA}, nil)
	c := newController(repo)
	signal := refresh.NewSignal()

	// when
	c.Sync(context.Background(), signal.Fire())
	c.Sync(context.Background(), signal.Version())
	c.Sync(context.Background(), signal.Fire())

	// then
	repo.AssertNumberOfCalls(t, "List", 2)
}

func TestController_EnsureLoaded(t *testing.T) {
	// given
	repo := new(mockRepository)
	repo.On("List", mock.Anything).Return([]catalog.Product{productA}, nil).Once()
	c := newController(repo)

	// when
	c.EnsureLoaded(context.Background())
	st := c.EnsureLoaded(context.Background())

	// then
	assert.Equal(t, StatusReady, st.Status)
	repo.AssertNumberOfCalls(t, "List", 1)
	p, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, productA, p)
	_, ok = c.Find("zzz")
	assert.False(t, ok)
}

func TestController_RefreshHonoursCallerContext(t *testing.T) {
	// given
	repo := new(mockRepository)
	repo.On("List", mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded).Once()
	c := newController(repo)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// when
	st := c.Refresh(ctx)

	// then
	assert.Equal(t, StatusError, st.Status)
}
