package relay

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestIDKey is the context key of the request id.
type requestIDKey struct{}

// statusWriter remembers the status written so it can be logged.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestID makes sure every request has an id: the X-Request-Id header when present, a new uuid otherwise. The id
// is stored in the request context, echoed in the response header and logged with the request outcome.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if strings.TrimSpace(rid) == "" {
			rid = uuid.NewString()
		}

		rw.Header().Set("X-Request-Id", rid)

		sw := &statusWriter{ResponseWriter: rw, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))

		log.Printf("httpreq id=%s from %v %s %s status=%d latency=%s", rid, r.RemoteAddr, r.Method, r.RequestURI,
			sw.status, time.Since(start))
	})
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}

	return ""
}
