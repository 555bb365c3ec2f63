package ratelimit

import "authgate/internal/platform/config"

// FromConfig reads the RATE_* keys and TRUST_PROXY from cfg
func FromConfig(cfg config.Conf) Options {
	def := DefaultOptions()
	return Options{
		Window:        cfg.MayDuration("RATE_WINDOW", def.Window),
		Limit:         cfg.MayInt("RATE_LIMIT", def.Limit),
		Message:       cfg.MayString("RATE_MESSAGE", def.Message),
		Headers:       cfg.MayEnum("RATE_HEADERS", def.Headers, HeadersDraft7, HeadersDraft6, HeadersNone),
		LegacyHeaders: cfg.MayBool("RATE_LEGACY_HEADERS", false),
		TrustProxy:    cfg.MayBool("TRUST_PROXY", false),
	}
}
