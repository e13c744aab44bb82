package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Route installs an empty chi routing context ahead of the router. chi fills
// in the existing context instead of allocating its own, which lets
// middleware outside the router read the matched pattern after serving.
func Route() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if chi.RouteContext(r.Context()) == nil {
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoutePattern returns the chi pattern matched for r, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
