package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"authgate/internal/admission"
	"authgate/internal/platform/config"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	phttp "authgate/internal/platform/net/http"
	"authgate/internal/ratelimit"
	"authgate/internal/request"
	"authgate/internal/routes"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {
	// service-scoped config (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := logger.NewSink(logger.SinkFromEnv())
	if err != nil {
		l.Warn().Err(err).Msg("error sink fell back to stderr")
	}
	defer func() { _ = sink.Close() }()

	var m *metrics.Metrics
	if apiCfg.MayBool("METRICS", true) {
		m = metrics.New("authgate")
	}

	opts := admission.FromConfig(apiCfg)
	opts.Sink = sink
	opts.Metrics = m
	opts.Requests = request.NewJWTFactory(request.JWTOptions{
		Secret:   []byte(apiCfg.MayString("JWT_SECRET", "")),
		Issuer:   apiCfg.MayString("JWT_ISSUER", ""),
		Audience: apiCfg.MayString("JWT_AUDIENCE", ""),
		Leeway:   apiCfg.MayDuration("JWT_LEEWAY", 0),
	})

	// shared counters when several instances sit behind one balancer
	if apiCfg.MayEnum("RATE_STORE", "memory", "memory", "redis") == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     apiCfg.MustString("REDIS_ADDR"),
			Password: apiCfg.MayString("REDIS_PASSWORD", ""),
			DB:       apiCfg.MayInt("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.Warn().Err(err).Msg("redis not reachable yet; rate limiting fails closed until it is")
		}
		opts.RateLimit.Store = ratelimit.NewRedisStore(rdb, opts.RateLimit.Window, apiCfg.MayString("REDIS_PREFIX", ""))
	}

	pipeline, err := admission.Build(opts)
	if err != nil {
		l.Panic().Err(err).Msg("admission.Build failed")
	}
	defer func() { _ = pipeline.Close() }()

	// http server (reads CORE_API_PORT / CORE_API_SHUTDOWN_TIMEOUT)
	srv := phttp.NewServer(apiCfg)
	pipeline.Mount(srv.Router())

	rt := routes.New(srv.Router(), routes.Options{
		Server:      srv,
		Metrics:     m,
		MetricsPath: apiCfg.MayString("METRICS_PATH", "/metrics"),
		Profiler:    apiCfg.MayBool("PROFILER", false),
	})

	l.Info().
		Strs("stages", pipeline.Names()).
		Str("error_sink", sink.File()).
		Msg("admission chain ready")

	if err := rt.Listen(ctx, apiCfg.MayString("SERVICE", routes.DefaultService)); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
