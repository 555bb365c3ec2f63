package middleware

import (
	"fmt"
	"net/http"
	"time"

	"authgate/internal/platform/logger"
	pnet "authgate/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// clfTime is the timestamp layout of the combined log format
const clfTime = "02/Jan/2006:15:04:05 -0700"

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level, 0 disables slow marking
	Slow time.Duration

	// Logger overrides the request scoped logger, mainly for tests
	Logger *logger.Logger
}

// AccessLog writes one combined-format record per request once the response is done.
// Fields are structured; the message is the classic combined line
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			log := opt.Logger
			if log == nil {
				log = logger.C(r.Context())
			}
			evt := log.Info()
			if opt.Slow > 0 && elapsed >= opt.Slow {
				evt = log.Warn()
			}

			remote := pnet.ClientIP(r, false)
			user, _, _ := r.BasicAuth()
			evt.Str("component", "access").
				Str("remote_addr", remote).
				Str("remote_user", user).
				Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("proto", r.Proto).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("referer", r.Referer()).
				Str("user_agent", r.UserAgent()).
				Dur("elapsed", elapsed).
				Msg(combinedLine(r, remote, user, start, status, ww.BytesWritten()))
		})
	}
}

func combinedLine(r *http.Request, remote, user string, at time.Time, status, bytes int) string {
	return fmt.Sprintf(`%s - %s [%s] "%s %s %s" %d %s "%s" "%s"`,
		remote, dash(user), at.Format(clfTime),
		r.Method, r.RequestURI, r.Proto,
		status, dashInt(bytes), dash(r.Referer()), dash(r.UserAgent()))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashInt(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}
