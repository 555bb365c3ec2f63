// Package admission assembles the ordered stage chain every request passes before routing
package admission

import (
	"compress/flate"
	stderrs "errors"
	"io/fs"
	"net/http"
	"os"

	"authgate/internal/platform/metrics"
	phttp "authgate/internal/platform/net/http"
	"authgate/internal/platform/net/middleware"
	"authgate/internal/ratelimit"
	"authgate/internal/request"
)

// Stage names in admission order
const (
	StageCORS      = "cors"
	StageSecurity  = "security"
	StageCompress  = "compress"
	StageAccessLog = "accesslog"
	StageBody      = "body"
	StageCookies   = "cookies"
	StageStatic    = "static"
	StageRateLimit = "ratelimit"
	StageGuard     = "guard"
)

// DefaultPublicDir is served by the static stage, relative to the working directory
const DefaultPublicDir = "public"

// Stage is one named step of the chain
type Stage struct {
	Name    string
	Handler func(http.Handler) http.Handler
}

// Options configures every stage; zero values take the defaults
type Options struct {
	CORS          middleware.CORSOptions
	Security      middleware.SecurityOptions
	CompressLevel int // 0 uses flate.DefaultCompression
	AccessLog     middleware.AccessLogOptions
	BodyLimit     int64

	// Public is served by the static stage; nil serves PublicDir from disk
	Public    fs.FS
	PublicDir string

	RateLimit ratelimit.Options
	Requests  request.Factory

	Sink    middleware.Reporter
	Metrics *metrics.Metrics
}

// Pipeline is the built chain plus the envelope around it
type Pipeline struct {
	envelope []func(http.Handler) http.Handler
	stages   []Stage
	limiter  *ratelimit.Limiter
}

// Build assembles the stages in admission order
func Build(o Options) (*Pipeline, error) {
	if o.Requests == nil {
		return nil, stderrs.New("admission: a request factory is required")
	}
	level := o.CompressLevel
	if level == 0 {
		level = flate.DefaultCompression
	}
	public := o.Public
	if public == nil {
		dir := o.PublicDir
		if dir == "" {
			dir = DefaultPublicDir
		}
		public = os.DirFS(dir)
	}

	rl := o.RateLimit
	if rl.Sink == nil {
		rl.Sink = o.Sink
	}
	if rl.Metrics == nil {
		rl.Metrics = o.Metrics
	}
	limiter := ratelimit.New(rl)

	p := &Pipeline{
		envelope: []func(http.Handler) http.Handler{
			middleware.RequestID(),
			middleware.SafeWrite(),
			middleware.RecoverJSON(o.Sink, o.Metrics),
			o.Metrics.Wrap,
		},
		stages: []Stage{
			{StageCORS, middleware.CORS(o.CORS)},
			{StageSecurity, middleware.SecurityHeaders(o.Security)},
			{StageCompress, middleware.Compress(level)},
			{StageAccessLog, middleware.AccessLog(o.AccessLog)},
			{StageBody, middleware.JSONBody(middleware.BodyOptions{Limit: o.BodyLimit, Metrics: o.Metrics})},
			{StageCookies, middleware.Cookies()},
			{StageStatic, middleware.Static(public, middleware.StaticOptions{Metrics: o.Metrics})},
			{StageRateLimit, limiter.Middleware},
			{StageGuard, Guard(o.Requests, o.Sink, o.Metrics)},
		},
		limiter: limiter,
	}
	return p, nil
}

// Names lists the stages in the order they run
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name
	}
	return out
}

// Stages returns a copy of the ordered stages
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Middlewares returns the envelope followed by the stages, outermost first
func (p *Pipeline) Middlewares() []func(http.Handler) http.Handler {
	out := append([]func(http.Handler) http.Handler(nil), p.envelope...)
	for _, s := range p.stages {
		out = append(out, s.Handler)
	}
	return out
}

// Mount installs the chain on r; call before any route is bound
func (p *Pipeline) Mount(r phttp.Router) {
	r.Use(p.Middlewares()...)
}

// Handler wraps next in the full chain
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return middleware.Chain(next, p.Middlewares()...)
}

// Close releases the rate-limit store when the pipeline owns it
func (p *Pipeline) Close() error {
	return p.limiter.Close()
}
