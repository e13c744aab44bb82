package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to GET, POST, OPTIONS.
	AllowMethods []string
	// AllowHeaders is echoed from Access-Control-Request-Headers when empty.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials disables the "*" origin; the request origin is echoed
	// instead.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits it.
	MaxAge int
}

type corsPolicy struct {
	any         bool
	origins     map[string]string // lowercase -> configured spelling
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		any:         len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	if p.methods == "" {
		p.methods = "GET, POST, OPTIONS"
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when it is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.any {
		if p.credentials {
			return origin
		}
		return "*"
	}
	return p.origins[strings.ToLower(origin)]
}

// CORS answers preflight requests and decorates actual cross-origin requests.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !p.any || p.credentials {
				h.Add("Vary", "Origin")
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := p.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", p.methods)
					if headers := p.headers; headers != "" {
						h.Set("Access-Control-Allow-Headers", headers)
					} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					}
					if p.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
