package rest

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/abgdnv/inventory-console/pkg/web"
)

const loginPath = "/login"

// RouteGate lets a request through only when its session is authenticated and its token has not expired.
// Page requests are redirected to the login entry point; JSON requests get 401.
func RouteGate(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws := ContextWorkspace(r.Context())
			if ws != nil && ws.Auth.CheckExpiry(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			if web.WantsJSON(r) {
				web.RespondError(w, logger, http.StatusUnauthorized, "authentication required")
				return
			}
			target := loginPath + "?return_to=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}
