package admission

import (
	"context"
	"net/http"

	perr "authgate/internal/platform/errors"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	pnet "authgate/internal/platform/net"
	phttp "authgate/internal/platform/net/http"
	"authgate/internal/platform/net/middleware"
	"authgate/internal/request"
)

// Guard authorizes the caller and writes the audit record before the chain continues.
// Any failure of either call, a panic included, reaches the sink and answers the generic 500
func Guard(f request.Factory, sink middleware.Reporter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ur := f(r)

			p, err := contain(func() (request.Principal, error) { return ur.Authorize(ctx) })
			phase := "authorize"
			if err == nil {
				phase = "log"
				_, err = contain(func() (request.Principal, error) { return p, ur.Log(ctx, p) })
			}
			if err != nil {
				fail(w, r, err, phase, sink, m)
				return
			}

			ctx = request.WithPrincipal(ctx, p)
			ctx = pnet.WithSubject(ctx, p.Subject)
			ctx = logger.WithRequest(ctx, "", p.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// contain runs fn and turns a panic into an error
func contain(fn func() (request.Principal, error)) (p request.Principal, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = perr.Recovered(v)
		}
	}()
	return fn()
}

func fail(w http.ResponseWriter, r *http.Request, err error, phase string, sink middleware.Reporter, m *metrics.Metrics) {
	ctx := r.Context()
	logger.C(ctx).Error().Err(err).Str("phase", phase).Msg("guard failed")
	if sink != nil {
		sink.Report(context.WithoutCancel(ctx), err)
		m.SinkRecord()
	}
	m.GuardFailure(phase)
	m.Halt("guard", http.StatusInternalServerError)
	if ctx.Err() != nil {
		return
	}
	phttp.RespondInternal(w)
}
