package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trail []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, trail)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sales", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})

	t.Run("echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "till-3-0001")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "till-3-0001", seen)
		assert.Equal(t, "till-3-0001", w.Header().Get(HeaderRequestID))
	})

	t.Run("invalid replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestLogRequests_RouteAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Get("/api/sales/{orderNumber}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handler")
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := Wrap(r, RequestID(), InjectLogger(zap.New(core)), Route(), LogRequests())

	req := httptest.NewRequest(http.MethodGet, "/api/sales/ORD-20261015-0001", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	handlerLogs := logs.FilterMessage("Handler").All()
	require.Len(t, handlerLogs, 1)
	assert.Equal(t, "req-1", handlerLogs[0].ContextMap()["request_id"])

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/sales/{orderNumber}", fields["route"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])

	failed := logs.FilterMessage("Request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

func TestRoutePattern_Unmatched(t *testing.T) {
	assert.Equal(t, "unmatched", RoutePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{
		AllowOrigins: []string{"https://Till.Example.com"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       600,
	})(okHandler())

	t.Run("preflight allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
		req.Header.Set("Origin", "https://till.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://Till.Example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("preflight denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/medicines", nil)
		req.Header.Set("Origin", "https://till.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://Till.Example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("wildcard with credentials echoes origin", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://any.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "https://any.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})
}
