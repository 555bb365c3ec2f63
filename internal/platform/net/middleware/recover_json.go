package middleware

import (
	"context"
	"net/http"
	"runtime/debug"

	perr "authgate/internal/platform/errors"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	phttp "authgate/internal/platform/net/http"
)

// Reporter receives failures that must reach the operator error sink
type Reporter interface {
	Report(ctx context.Context, err error)
}

// RecoverJSON turns a panic anywhere below it into the generic JSON 500 and a sink record.
// http.ErrAbortHandler is re-raised so net/http can abort the connection as intended
func RecoverJSON(sink Reporter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				err := perr.Recovered(v)
				logger.C(r.Context()).Error().
					Err(err).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				if sink != nil {
					sink.Report(r.Context(), err)
					m.SinkRecord()
				}
				m.Halt("recover", http.StatusInternalServerError)

				if written(w) || r.Context().Err() != nil {
					return
				}
				phttp.RespondInternal(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
