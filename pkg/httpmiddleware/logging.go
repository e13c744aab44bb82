package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogRequests emits one log line per request with the matched route, status
// and latency. 5xx responses are logged at error level.
func LogRequests() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", RoutePattern(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			lg := zctx.From(r.Context())
			if status >= http.StatusInternalServerError {
				lg.Error("Request failed", fields...)
				return
			}
			lg.Info("Request", fields...)
		})
	}
}
