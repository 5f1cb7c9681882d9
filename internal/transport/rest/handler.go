// Package rest exposes the console workspaces over HTTP/JSON.
package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/abgdnv/inventory-console/internal/attachments"
	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/dashboard"
	"github.com/abgdnv/inventory-console/internal/editor"
	"github.com/abgdnv/inventory-console/internal/listing"
	"github.com/abgdnv/inventory-console/internal/session"
	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/abgdnv/inventory-console/pkg/config"
	"github.com/abgdnv/inventory-console/pkg/web"
	"github.com/go-chi/chi/v5"
)

const imagesField = "images"

// Pinger checks that the remote API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	workspaces     Workspaces
	sessionCfg     config.SessionConfig
	api            Pinger
	metrics        http.Handler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates the console HTTP handler. metrics may be nil.
func NewHandler(workspaces Workspaces, sessionCfg config.SessionConfig, api Pinger, metrics http.Handler, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		workspaces:     workspaces,
		sessionCfg:     sessionCfg,
		api:            api,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the probe, auth and dashboard routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/livez", h.Livez)
	r.Get("/readyz", h.Readyz)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(h.workspaces, h.sessionCfg))
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
		r.Get("/session", h.Session)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(RouteGate(h.logger))
			r.Get("/", h.Dashboard)
			r.Post("/refresh", h.Refresh)
			r.Post("/select/{id}", h.Select)
			r.Post("/deselect", h.Deselect)
			r.Route("/draft", func(r chi.Router) {
				r.Patch("/", h.UpdateDraft)
				r.Post("/files", h.StageFiles)
				r.Delete("/existing/{key}", h.RemoveExisting)
				r.Delete("/files/{key}", h.RemoveNewFile)
				r.Post("/submit", h.Submit)
			})
			r.Delete("/products/{id}", h.DeleteProduct)
		})
	})
}

func (h *Handler) Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Readyz reports whether the remote API answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.api.Ping(r.Context()); err != nil {
		h.routeLogger(r).WarnContext(r.Context(), "Remote API not ready", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "remote API unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	State         session.State `json:"state"`
	ReturnTo      string        `json:"returnTo,omitempty"`
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	ws := ContextWorkspace(r.Context())
	authenticated := ws.Auth.CheckExpiry(r.Context())
	web.RespondJSON(w, h.logger, http.StatusOK, sessionResponse{Authenticated: authenticated, State: ws.Auth.State()})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	var creds catalog.Credentials
	if err := web.DecodeJSON(r, &creds); err != nil {
		mLogger.WarnContext(r.Context(), "Invalid login body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	// a login always lands on a fresh session id; the previous one is retired
	previous := ContextWorkspace(r.Context())
	id := h.workspaces.NewID()
	ws := h.workspaces.Get(r.Context(), id)
	if err := ws.Auth.Login(r.Context(), creds); err != nil {
		h.workspaces.Drop(r.Context(), id)
		h.respondAuthFailure(w, r, err)
		return
	}
	setSessionCookie(w, h.sessionCfg, id)
	h.workspaces.Drop(r.Context(), previous.ID)
	web.RespondJSON(w, mLogger, http.StatusOK, sessionResponse{
		Authenticated: true,
		State:         ws.Auth.State(),
		ReturnTo:      safeReturnTo(r.URL.Query().Get("return_to")),
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	var reg catalog.Registration
	if err := web.DecodeJSON(r, &reg); err != nil {
		mLogger.WarnContext(r.Context(), "Invalid register body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := ContextWorkspace(r.Context()).Auth.Register(r.Context(), reg)
	if err != nil {
		h.respondAuthFailure(w, r, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, map[string]string{"message": msg})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ws := ContextWorkspace(r.Context())
	if err := ws.Auth.Logout(r.Context()); err != nil {
		h.routeLogger(r).ErrorContext(r.Context(), "Logout could not clear the stored token", "error", err)
	}
	web.RespondJSON(w, h.logger, http.StatusOK, sessionResponse{Authenticated: false, State: ws.Auth.State()})
}

func (h *Handler) respondAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	mLogger := h.routeLogger(r)
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		web.RespondValidation(w, mLogger, fe)
		return
	}
	var failure *session.FailureError
	if errors.As(err, &failure) {
		web.RespondError(w, mLogger, upstreamStatus(failure.Err), failure.Message)
		return
	}
	mLogger.ErrorContext(r.Context(), "Unexpected auth error", "error", err)
	web.RespondError(w, mLogger, http.StatusInternalServerError, "Internal Server Error")
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.coordinator(r).View(r.Context()))
}

// Refresh is the manual retry of the list. Fetch failures are reported in the list state.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.coordinator(r).Refresh(r.Context()))
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	id := chi.URLParam(r, "id")
	c := h.coordinator(r)
	if err := c.Select(r.Context(), id); err != nil {
		if errors.Is(err, dashboard.ErrNotInList) {
			mLogger.WarnContext(r.Context(), "Product not in list", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product "+id+" is not in the list")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error selecting product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to select product")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, c.View(r.Context()))
}

func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	c := h.coordinator(r)
	c.Deselect(r.Context())
	web.RespondJSON(w, h.logger, http.StatusOK, c.View(r.Context()))
}

// UpdateDraft applies every field present in the JSON object body, or none of them when one is unknown.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	var fields map[editor.Field]string
	if err := web.DecodeJSON(r, &fields); err != nil {
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	ed := h.coordinator(r).Editor()
	if err := ed.SetFields(fields); err != nil {
		mLogger.WarnContext(r.Context(), "Rejected draft update", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, ed.State())
}

type stagedResponse struct {
	Keys  []attachments.Key `json:"keys"`
	Draft editor.State      `json:"draft"`
}

// StageFiles stages every file of the multipart "images" field.
func (h *Handler) StageFiles(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			web.RespondError(w, mLogger, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[imagesField]
	if len(headers) == 0 {
		web.RespondError(w, mLogger, http.StatusBadRequest, "No files in field "+imagesField)
		return
	}
	files := make([]attachments.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			mLogger.ErrorContext(r.Context(), "Failed to open upload", "filename", fh.Filename, "error", err)
			web.RespondError(w, mLogger, http.StatusBadRequest, "Failed to read upload")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			web.RespondError(w, mLogger, http.StatusBadRequest, "Failed to read upload")
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		files = append(files, attachments.File{Filename: fh.Filename, ContentType: contentType, Data: data})
	}

	ed := h.coordinator(r).Editor()
	keys := make([]attachments.Key, 0, len(files))
	for _, f := range files {
		keys = append(keys, ed.StageFile(f))
	}
	mLogger.DebugContext(r.Context(), "Files staged", "count", len(keys))
	web.RespondJSON(w, mLogger, http.StatusCreated, stagedResponse{Keys: keys, Draft: ed.State()})
}

func (h *Handler) RemoveExisting(w http.ResponseWriter, r *http.Request) {
	h.removeAttachment(w, r, (*editor.Controller).RemoveExisting)
}

func (h *Handler) RemoveNewFile(w http.ResponseWriter, r *http.Request) {
	h.removeAttachment(w, r, (*editor.Controller).RemoveNewFile)
}

func (h *Handler) removeAttachment(w http.ResponseWriter, r *http.Request, remove func(*editor.Controller, attachments.Key) bool) {
	mLogger := h.routeLogger(r)
	key := attachments.Key(chi.URLParam(r, "key"))
	ed := h.coordinator(r).Editor()
	if !remove(ed, key) {
		web.RespondError(w, mLogger, http.StatusNotFound, "No attachment with key "+string(key))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, ed.State())
}

type submitFailure struct {
	Error string       `json:"error"`
	Draft editor.State `json:"draft"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	c := h.coordinator(r)
	res := c.Editor().Submit(r.Context())
	switch {
	case res.Submitted:
		web.RespondJSON(w, mLogger, http.StatusOK, c.View(r.Context()))
	case len(res.Errors) > 0:
		web.RespondValidation(w, mLogger, res.Errors)
	case res.Message == editor.ErrSubmitInProgress.Error():
		web.RespondError(w, mLogger, http.StatusConflict, res.Message)
	default:
		web.RespondJSON(w, mLogger, http.StatusBadGateway, submitFailure{Error: res.Message, Draft: c.Editor().State()})
	}
}

type deleteResponse struct {
	Outcome string        `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
	List    listing.State `json:"list"`
}

// DeleteProduct deletes a product once the request carries confirm=true.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.routeLogger(r)
	id := chi.URLParam(r, "id")
	confirmed, err := web.QueryBool(r, "confirm")
	if err != nil {
		web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
		return
	}
	confirm := listing.ConfirmFunc(func(context.Context, string) bool { return confirmed })
	res := h.coordinator(r).Delete(r.Context(), id, confirm)
	switch {
	case !res.Confirmed:
		web.RespondError(w, mLogger, http.StatusPreconditionRequired, "Deletion must be confirmed with confirm=true")
	case res.State.Status == listing.StatusError:
		web.RespondJSON(w, mLogger, http.StatusBadGateway, deleteResponse{Error: res.State.Error, List: res.State})
	default:
		web.RespondJSON(w, mLogger, http.StatusOK, deleteResponse{Outcome: res.Outcome.String(), List: res.State})
	}
}

func (h *Handler) coordinator(r *http.Request) *dashboard.Coordinator {
	return ContextWorkspace(r.Context()).Dashboard
}

// routeLogger creates a logger tagged with the matched route. The request id is added by the log handler.
func (h *Handler) routeLogger(r *http.Request) *slog.Logger {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return h.logger.With("route", rc.RoutePattern())
	}
	return h.logger
}

// upstreamStatus maps a remote failure to the status the console answers with.
func upstreamStatus(err error) int {
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	if errors.Is(err, catalog.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// safeReturnTo keeps only local paths so a login cannot redirect off-site.
func safeReturnTo(target string) string {
	if len(target) == 0 || target[0] != '/' || len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return ""
	}
	return target
}
