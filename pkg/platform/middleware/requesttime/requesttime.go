// Package requesttime captures one "now" per request so every timestamp an
// enrollment write produces (created_at, updated_at, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"educa/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
