package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

var staticRoutes = map[string]bool{
	"/":                       true,
	"/auth/register":          true,
	"/auth/login":             true,
	"/auth/refresh":           true,
	"/auth/me":                true,
	"/requirements":           true,
	"/requirements/upload":    true,
	"/prioritization/analyze": true,
	"/prioritization/chatgpt": true,
	"/sessions":               true,
	"/sessions/latest":        true,
	"/admin/llm-config":       true,
	"/health":                 true,
	"/ready":                  true,
	"/metrics":                true,
}

// dynamicPrefixes maps a route prefix to its single-segment pattern.
var dynamicPrefixes = []struct {
	prefix  string
	pattern string
}{
	{"/prioritization/", "/prioritization/{sessionId}"},
	{"/export/csv/", "/export/csv/{sessionId}"},
	{"/export/html/", "/export/html/{sessionId}"},
	{"/sessions/", "/sessions/{sessionId}"},
}

// normalizePath maps request paths to route patterns so that session IDs
// do not become metric labels. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	for _, d := range dynamicPrefixes {
		if rest, ok := strings.CutPrefix(path, d.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return d.pattern
		}
	}
	return "other"
}

// metricsResponseWriter captures status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter { return mrw.ResponseWriter }

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records duration, size and count for every request except
// the health probes.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
