package ratelimit

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	pnet "authgate/internal/platform/net"
	phttp "authgate/internal/platform/net/http"
	"authgate/internal/platform/net/middleware"
	ptime "authgate/internal/platform/time"
)

// Header styles for the rate-limit metadata
const (
	HeadersDraft7 = "draft-7" // combined RateLimit and RateLimit-Policy
	HeadersDraft6 = "draft-6" // RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset
	HeadersNone   = "none"
)

// DefaultMessage is the 429 body
const DefaultMessage = "Too many requests, please try again later."

// Options configures the limiter
type Options struct {
	Window        time.Duration
	Limit         int
	Message       string
	TrustProxy    bool
	Headers       string
	LegacyHeaders bool

	// Store defaults to a MemoryStore owned by the limiter
	Store   Store
	Sink    middleware.Reporter
	Metrics *metrics.Metrics
	Clock   ptime.Clock
}

// DefaultOptions is 100 requests per 15 minutes per direct peer
func DefaultOptions() Options {
	return Options{
		Window:  15 * time.Minute,
		Limit:   100,
		Message: DefaultMessage,
		Headers: HeadersDraft7,
	}
}

// Limiter is the fixed-window admission stage
type Limiter struct {
	opt   Options
	store Store
	owned io.Closer
}

// New builds a limiter, filling zero options from DefaultOptions
func New(o Options) *Limiter {
	def := DefaultOptions()
	if o.Window <= 0 {
		o.Window = def.Window
	}
	if o.Limit <= 0 {
		o.Limit = def.Limit
	}
	if o.Message == "" {
		o.Message = def.Message
	}
	if o.Headers == "" {
		o.Headers = def.Headers
	}
	if o.Clock == nil {
		o.Clock = ptime.System
	}

	l := &Limiter{opt: o, store: o.Store}
	if l.store == nil {
		ms := NewMemoryStore(o.Window, WithClock(o.Clock))
		l.store, l.owned = ms, ms
	}
	return l
}

// Options returns the effective configuration
func (l *Limiter) Options() Options { return l.opt }

// Close releases a store the limiter created itself
func (l *Limiter) Close() error {
	if l.owned == nil {
		return nil
	}
	return l.owned.Close()
}

// Middleware counts every request and halts with 429 once the window is spent
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := pnet.ClientIP(r, l.opt.TrustProxy)

		hit, err := l.store.Increment(ctx, key)
		if err != nil {
			logger.C(ctx).Error().Err(err).Str("client", key).Msg("rate limit store failed")
			if l.opt.Sink != nil {
				l.opt.Sink.Report(context.WithoutCancel(ctx), err)
				l.opt.Metrics.SinkRecord()
			}
			l.opt.Metrics.Halt("ratelimit", http.StatusInternalServerError)
			if ctx.Err() == nil {
				phttp.RespondInternal(w)
			}
			return
		}

		info := pnet.RateLimit{
			Limit:     l.opt.Limit,
			Used:      hit.Count,
			Remaining: max(0, l.opt.Limit-hit.Count),
			ResetAt:   hit.ResetAt,
		}
		now := l.opt.Clock.Now()
		l.writeHeaders(w.Header(), info, now)

		if hit.Count > l.opt.Limit {
			l.opt.Metrics.RateLimited()
			l.opt.Metrics.Halt("ratelimit", http.StatusTooManyRequests)
			logger.C(ctx).Debug().Str("client", key).Int("count", hit.Count).Msg("rate limited")
			if ctx.Err() != nil {
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(ptime.SecondsUntil(now, hit.ResetAt)))
			phttp.Text(w, http.StatusTooManyRequests, l.opt.Message)
			return
		}

		ctx = pnet.WithClientKey(ctx, key)
		ctx = pnet.WithRateLimit(ctx, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (l *Limiter) writeHeaders(h http.Header, info pnet.RateLimit, now time.Time) {
	reset := ptime.SecondsUntil(now, info.ResetAt)
	limit := strconv.Itoa(info.Limit)
	remaining := strconv.Itoa(info.Remaining)

	switch l.opt.Headers {
	case HeadersDraft7:
		h.Set("RateLimit-Policy", limit+";w="+strconv.Itoa(int(l.opt.Window/time.Second)))
		h.Set("RateLimit", "limit="+limit+", remaining="+remaining+", reset="+strconv.Itoa(reset))
	case HeadersDraft6:
		h.Set("RateLimit-Policy", limit+";w="+strconv.Itoa(int(l.opt.Window/time.Second)))
		h.Set("RateLimit-Limit", limit)
		h.Set("RateLimit-Remaining", remaining)
		h.Set("RateLimit-Reset", strconv.Itoa(reset))
	}
	if l.opt.LegacyHeaders {
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", remaining)
		h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
	}
}
