package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Recoverer turns a handler panic into the internal error envelope.
func (rs Responder) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			slog.Error("panic in request handler", "method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
			rs.WriteError(w, CodedErrorf(http.StatusInternalServerError, "panic: %v", rec))
		}()

		next.ServeHTTP(w, r)
	})
}

// Timeout bounds the request context. Unlike chi's middleware.Timeout it
// writes nothing itself: handlers see the expired context and their error goes
// through the usual envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
