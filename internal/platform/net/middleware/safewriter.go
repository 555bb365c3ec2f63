package middleware

import (
	"net/http"

	"authgate/internal/platform/logger"
)

// safeWriter remembers the first write failure (usually a gone client) and turns
// every later write into a no-op returning that error
type safeWriter struct {
	http.ResponseWriter
	wroteHeader bool
	err         error
}

func (s *safeWriter) WriteHeader(code int) {
	if s.wroteHeader || s.err != nil {
		return
	}
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *safeWriter) Write(b []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	if err != nil {
		s.err = err
	}
	return n, err
}

func (s *safeWriter) Flush() {
	if s.err != nil {
		return
	}
	s.wroteHeader = true
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (s *safeWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Written reports whether the status line has gone out
func (s *safeWriter) Written() bool { return s.wroteHeader }

// Err returns the first write error, if any
func (s *safeWriter) Err() error { return s.err }

// SafeWrite makes write failures after a client disconnect non fatal for every
// stage below it
func SafeWrite() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &safeWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.err != nil {
				logger.C(r.Context()).Debug().Err(sw.err).Str("path", r.URL.Path).Msg("response abandoned")
			}
		})
	}
}

// written reports whether w (or a writer it wraps) already sent headers
func written(w http.ResponseWriter) bool {
	for {
		if sw, ok := w.(interface{ Written() bool }); ok {
			return sw.Written()
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return false
		}
		w = u.Unwrap()
	}
}
