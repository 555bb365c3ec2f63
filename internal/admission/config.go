package admission

import (
	"compress/flate"

	"authgate/internal/platform/config"
	"authgate/internal/platform/net/middleware"
	"authgate/internal/ratelimit"
)

// FromConfig reads stage settings from cfg. Requests, Sink and Metrics are left for the caller
func FromConfig(cfg config.Conf) Options {
	return Options{
		CORS: middleware.CORSOptions{
			AllowedOrigins: cfg.MayCSV("CORS_ORIGINS", nil),
		},
		Security: middleware.SecurityOptions{
			ContentSecurityPolicy: cfg.MayString("CSP", ""),
		},
		CompressLevel: cfg.MayInt("COMPRESS_LEVEL", flate.DefaultCompression),
		AccessLog: middleware.AccessLogOptions{
			Slow: cfg.MayDuration("ACCESS_LOG_SLOW", 0),
		},
		BodyLimit: cfg.MayBytes("BODY_LIMIT", middleware.DefaultBodyLimit),
		PublicDir: cfg.MayString("PUBLIC_DIR", DefaultPublicDir),
		RateLimit: ratelimit.FromConfig(cfg),
	}
}
