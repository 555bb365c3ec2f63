// Package middleware holds the admission stages and the envelope around them.
// Every constructor returns a plain func(http.Handler) http.Handler
package middleware

import (
	"net/http"

	"authgate/internal/platform/logger"
	pnet "authgate/internal/platform/net"
	pstrings "authgate/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in and out
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds ids accepted from callers
const maxRequestIDLen = 128

// RequestID reuses a well formed inbound X-Request-ID or mints a uuid, stores it on
// the context for pnet.RequestID and logger.C, and echoes it on the response
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := pnet.WithRequest(r.Context(), id)
			ctx = logger.WithRequest(ctx, id, "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Compress wraps chi's compressor. level usually flate.DefaultCompression or flate.BestSpeed
func Compress(level int, types ...string) func(http.Handler) http.Handler {
	c := chimw.NewCompressor(level, types...)
	return func(next http.Handler) http.Handler { return c.Handler(next) }
}

// NoCache sets headers to disable client and proxy caching
func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// Heartbeat replies with 200 OK to GET path, useful for LB health checks
func Heartbeat(path string) func(http.Handler) http.Handler { return chimw.Heartbeat(path) }

// CORSOptions is a narrow surface over go-chi/cors
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS wraps go-chi/cors; empty fields fall back to the permissive defaults
// (any origin, the common verbs, any requested header)
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: pstrings.IfEmpty(o.AllowedOrigins, []string{"*"}),
		AllowedMethods: pstrings.IfEmpty(o.AllowedMethods, []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPatch, http.MethodPost, http.MethodDelete,
		}),
		AllowedHeaders: pstrings.IfEmpty(o.AllowedHeaders, []string{"*"}),
		ExposedHeaders: pstrings.IfEmpty(o.ExposedHeaders, []string{
			RequestIDHeader, "RateLimit", "RateLimit-Policy", "Retry-After",
		}),
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}

// Chain composes mws so the first one is outermost
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
