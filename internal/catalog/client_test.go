package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/inventory-console/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(
		config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		config.CircuitBreakerConfig{ConsecutiveFailures: 3, ErrorRatePercent: 100, OpenTimeout: time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	require.NoError(t, err)
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_List(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected []Product
		wantErr  bool
	}{
		{
			name:   "decodes _id and numeric price",
			status: http.StatusOK,
			body:   `{"data":[{"_id":"p1","sku":"A-1","name":"Widget","price":19.99,"images":["http://x/1.png"]}]}`,
			expected: []Product{
				{ID: "p1", SKU: "A-1", Name: "Widget", Price: "19.99", Images: []string{"http://x/1.png"}},
			},
		},
		{
			name:   "decodes id and string price",
			status: http.StatusOK,
			body:   `{"data":[{"id":"p2","sku":"B-2","name":"Gadget","price":"5"}]}`,
			expected: []Product{
				{ID: "p2", SKU: "B-2", Name: "Gadget", Price: "5", Images: []string{}},
			},
		},
		{
			name:     "missing data becomes empty list",
			status:   http.StatusOK,
			body:     `{}`,
			expected: []Product{},
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"message":"boom"}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/products", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			// when
			products, err := client.List(context.Background())

			// then
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, "boom", Message(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, products)
		})
	}
}

func TestClient_AttachesBearerToken(t *testing.T) {
	// given
	headers := make(chan string, 2)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	authed := client.WithTokenSource(TokenFunc(func() string { return "tok-1" }))

	// when
	_, err := client.List(context.Background())
	require.NoError(t, err)
	_, err = authed.List(context.Background())
	require.NoError(t, err)

	// then
	assert.Empty(t, <-headers, "the base client carries no token")
	assert.Equal(t, "Bearer tok-1", <-headers)
}

func TestClient_UpdateSendsMultipart(t *testing.T) {
	// given
	type received struct {
		method   string
		path     string
		fields   map[string][]string
		files    []string
		contents []string
	}
	var rec received
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.fields = r.MultipartForm.Value
		for _, fh := range r.MultipartForm.File["images"] {
			rec.files = append(rec.files, fh.Filename)
			f, err := fh.Open()
			require.NoError(t, err)
			b, _ := io.ReadAll(f)
			_ = f.Close()
			rec.contents = append(rec.contents, string(b))
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	form := ProductForm{
		SKU:            "A-1",
		Name:           "Widget",
		Price:          "9.50",
		ExistingImages: []string{"http://x/1.png", "http://x/2.png"},
		Images:         []Upload{{Filename: "new.png", ContentType: "image/png", Data: []byte("PNG")}},
	}

	// when
	err := client.Update(context.Background(), "id/1", form)

	// then
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/api/products/id%2F1", rec.path)
	assert.Equal(t, []string{"A-1"}, rec.fields["sku"])
	assert.Equal(t, []string{"Widget"}, rec.fields["name"])
	assert.Equal(t, []string{"9.50"}, rec.fields["price"])
	assert.Equal(t, []string{"http://x/1.png", "http://x/2.png"}, rec.fields["existingImages"])
	assert.Equal(t, []string{"new.png"}, rec.files)
	assert.Equal(t, []string{"PNG"}, rec.contents)
}

func TestClient_Delete(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected DeleteOutcome
		wantErr  bool
	}{
		{name: "ok", status: http.StatusOK, expected: Deleted},
		{name: "already gone", status: http.StatusNotFound, expected: AlreadyGone},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "no content is not in the success set", status: http.StatusNoContent, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/products/p1", r.URL.Path)
				w.WriteHeader(tc.status)
			})

			// when
			outcome, err := client.Delete(context.Background(), "p1")

			// then
			if tc.wantErr {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tc.status, apiErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, outcome)
		})
	}
}

func TestClient_Login(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        any
		expected    string
		expectedMsg string
	}{
		{name: "success", status: http.StatusOK, body: map[string]string{"token": "abc"}, expected: "abc"},
		{name: "rejected with server message", status: http.StatusUnauthorized, body: map[string]string{"error": "Invalid credentials"}, expectedMsg: "Invalid credentials"},
		{name: "created is not success", status: http.StatusCreated, body: map[string]string{"token": "abc"}, expectedMsg: "Created"},
		{name: "no token", status: http.StatusOK, body: map[string]string{}, expectedMsg: "response carried no token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				var creds Credentials
				require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
				assert.Equal(t, "a@b.c", creds.Email)
				writeJSON(w, tc.status, tc.body)
			})

			// when
			token, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "secret1"})

			// then
			if tc.expectedMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tc.expectedMsg, Message(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, token)
		})
	}
}

func TestClient_Register(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "ok is not created", status: http.StatusOK, wantErr: true},
		{name: "conflict", status: http.StatusConflict, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/register", r.URL.Path)
				var reg Registration
				require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
				assert.Equal(t, "555", reg.Mobile)
				w.WriteHeader(tc.status)
			})

			// when
			err := client.Register(context.Background(), Registration{Name: "N", Email: "a@b.c", Mobile: "555", Password: "secret1"})

			// then
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_BreakerOpensOnRepeatedServerErrors(t *testing.T) {
	// given
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	// when
	for i := 0; i < 3; i++ {
		_, err := client.List(context.Background())
		require.Error(t, err)
	}
	_, err := client.List(context.Background())

	// then
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, ErrUnavailable.Error(), Message(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_TransportError(t *testing.T) {
	// given
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	// when
	_, err := client.List(context.Background())

	// then
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "list", transportErr.Op)
	assert.NotEmpty(t, Message(err))
}

func TestAPIError_Is(t *testing.T) {
	assert.True(t, errors.Is(&APIError{Status: http.StatusNotFound}, ErrNotFound))
	assert.True(t, errors.Is(&APIError{Status: http.StatusForbidden}, ErrUnauthorized))
	assert.False(t, errors.Is(&APIError{Status: http.StatusInternalServerError}, ErrNotFound))
}

func TestClient_Ping(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "not found still reachable", status: http.StatusNotFound},
		{name: "server error", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			// when
			err := client.Ping(context.Background())

			// then
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
