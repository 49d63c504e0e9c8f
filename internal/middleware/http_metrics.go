package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to
// prevent cardinality explosion in metrics. Decoy paths are collapsed to a
// single label so an attacker scanning the honeypot cannot inflate the
// metric label space.
func normalizePath(path string, isDecoy func(string) bool) string {
	staticRoutes := map[string]bool{
		"/":                    true,
		"/api/auth":            true,
		"/api/newsletter":      true,
		"/api/admin/alerts":    true,
		"/api/admin/blocklist": true,
		"/sitemap.xml":         true,
		"/robots.txt":          true,
		"/health":              true,
		"/ready":               true,
		"/metrics":             true,
	}

	if staticRoutes[path] {
		return path
	}

	if isDecoy != nil && isDecoy(path) {
		return "/{decoy}"
	}

	// /api/kv/{key}
	if strings.HasPrefix(path, "/api/kv/") {
		return "/api/kv/{key}"
	}

	// /api/admin/blocklist/{identity}
	if strings.HasPrefix(path, "/api/admin/blocklist/") {
		return "/api/admin/blocklist/{identity}"
	}

	// Fallback: unknown paths share one label rather than leaking
	// arbitrary attacker-chosen strings into metrics.
	return "/{other}"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// Health check endpoints (/health, /ready) are excluded to avoid noise.
// isDecoy reports whether a path belongs to the honeypot surface; it may
// be nil.
func HTTPMetrics(metrics *Metrics, isDecoy func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			normalizedPath := normalizePath(r.URL.Path, isDecoy)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				mrw.size,
			)
		})
	}
}
