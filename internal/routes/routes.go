// Package routes binds the service endpoints behind the admission chain and runs the server
package routes

import (
	"context"
	"net/http"
	"strings"

	perr "authgate/internal/platform/errors"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	pnet "authgate/internal/platform/net"
	phttp "authgate/internal/platform/net/http"
	"authgate/internal/platform/net/middleware"
	"authgate/internal/request"
)

// DefaultService names the API group when none is configured
const DefaultService = "auth"

// Runner serves until ctx is cancelled
type Runner interface {
	Run(ctx context.Context) error
}

// Options configures the routes
type Options struct {
	// Server runs the listener for Listen
	Server Runner

	Metrics     *metrics.Metrics
	MetricsPath string // empty disables the scrape endpoint
	Profiler    bool   // mounts pprof under /debug
}

// Routes owns the endpoints of one service
type Routes struct {
	r   phttp.Router
	opt Options
}

// New returns Routes binding onto r; the admission chain must already be mounted
func New(r phttp.Router, o Options) *Routes {
	return &Routes{r: r, opt: o}
}

// Bind registers the operational endpoints and the service API under /api/{service}.
// Call it once, before any other route is added to the router
func (rt *Routes) Bind(service string) error {
	service = strings.Trim(service, "/ ")
	if service == "" || strings.Contains(service, "/") {
		return perr.InvalidArgf("routes: invalid service name %q", service)
	}

	rt.r.Use(middleware.Heartbeat("/health"))
	if rt.opt.MetricsPath != "" && rt.opt.Metrics != nil {
		rt.r.Handle(rt.opt.MetricsPath, rt.opt.Metrics.Handler())
	}
	phttp.MountProfiler(rt.r, "/debug", rt.opt.Profiler)

	rt.r.Route("/api/"+service, func(api phttp.Router) {
		api.Use(middleware.NoCache())
		phttp.GetJSON(api, "/session", session(service))
		phttp.PostJSON(api, "/echo", echo(service))
	})
	rt.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		phttp.RespondError(w, r, perr.NotFoundf("no route for %s %s", r.Method, r.URL.Path))
	})
	return nil
}

// Listen binds the routes for service and serves until ctx is cancelled
func (rt *Routes) Listen(ctx context.Context, service string) error {
	if rt.opt.Server == nil {
		return perr.Unavailablef("routes: no server configured")
	}
	if err := rt.Bind(service); err != nil {
		return err
	}
	logger.Named("routes").Info().Str("service", service).Msg("routes bound")
	return rt.opt.Server.Run(ctx)
}

// Session describes what the admission chain learned about the caller
type Session struct {
	Service   string            `json:"service"`
	RequestID string            `json:"request_id"`
	Principal request.Principal `json:"principal"`
	Client    string            `json:"client"`
	Cookies   map[string]string `json:"cookies"`
	RateLimit *SessionRateLimit `json:"rate_limit,omitempty"`
}

// SessionRateLimit is the caller's standing in the current window
type SessionRateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
}

func session(service string) func(*http.Request) (any, error) {
	return func(r *http.Request) (any, error) {
		ctx := r.Context()
		p, ok := request.PrincipalFrom(ctx)
		if !ok {
			return nil, perr.Unauthorizedf("no principal on request")
		}
		out := Session{
			Service:   service,
			RequestID: pnet.RequestID(ctx),
			Principal: p,
			Client:    pnet.ClientKey(ctx),
			Cookies:   pnet.Cookies(ctx),
		}
		if rl, ok := pnet.RateLimitInfo(ctx); ok {
			out.RateLimit = &SessionRateLimit{Limit: rl.Limit, Remaining: rl.Remaining, ResetAt: rl.ResetAt.Unix()}
		}
		return out, nil
	}
}

// EchoRequest is the payload accepted by POST /api/{service}/echo
type EchoRequest struct {
	Message string   `json:"message" validate:"required,max=1024"`
	Tags    []string `json:"tags" validate:"max=16,dive,slug"`
}

// EchoResponse returns the payload with the caller's subject
type EchoResponse struct {
	Service string   `json:"service"`
	Subject string   `json:"subject"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
}

func echo(service string) func(*http.Request, EchoRequest) (any, error) {
	return func(r *http.Request, in EchoRequest) (any, error) {
		return EchoResponse{
			Service: service,
			Subject: pnet.Subject(r.Context()),
			Message: in.Message,
			Tags:    in.Tags,
		}, nil
	}
}
