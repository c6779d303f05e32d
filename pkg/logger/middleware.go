package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is reused when the panel's delivery pipeline already
// tagged the request, so retries stay traceable across both sides.
const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the request identifier stored in ctx, or an
// empty string when absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// Middleware tags every inbound request with an identifier and echoes it in
// the response so webhook deliveries can be correlated with audit entries.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
