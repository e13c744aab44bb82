// Package httpmiddleware contains the net/http middleware chain shared by the
// pharmacy API: recovery, request ids, request logging, telemetry, CORS and
// rate limiting.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost, so it
// sees the request first and the response last.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// WriteError writes a {"code","message"} JSON error body with the given
// status.
func WriteError(w http.ResponseWriter, status int, message string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
