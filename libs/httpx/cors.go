package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy controls which browser origins may call the booking API. The
// public booking widget is served from a different host than the API, so the
// browser preflights every POST.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights and stamps allow headers for matching origins.
// An empty origin list disables the middleware entirely.
func WithCORS(policy CORSPolicy) Middleware {
	origins := trimAll(policy.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := strings.Join(trimAll(policy.AllowedMethods), ", ")
	headers := strings.Join(trimAll(policy.AllowedHeaders), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allow, ok := resolveOrigin(r.Header.Get("Origin"), origins, policy.AllowCredentials)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			if policy.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if secs := int(policy.MaxAge.Seconds()); secs > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(secs))
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveOrigin picks the Allow-Origin value for a request origin. The
// wildcard must echo the concrete origin when credentials are allowed, the
// browser rejects "*" there.
func resolveOrigin(origin string, allowed []string, credentials bool) (string, bool) {
	if origin == "" {
		return "", false
	}
	for _, a := range allowed {
		if a == "*" {
			if credentials {
				return origin, true
			}
			return "*", true
		}
		if strings.EqualFold(a, origin) {
			return origin, true
		}
	}
	return "", false
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
