package ratelimit_test

import (
	"testing"
	"time"

	"authgate/internal/platform/config"
	kit "authgate/internal/platform/testkit"
	"authgate/internal/ratelimit"
)

func TestFromConfig_Defaults(t *testing.T) {
	o := ratelimit.FromConfig(config.New().Prefix("RLDEF_"))
	if o.Window != 15*time.Minute || o.Limit != 100 || o.Headers != ratelimit.HeadersDraft7 {
		t.Fatalf("defaults = %+v", o)
	}
	if o.TrustProxy || o.LegacyHeaders {
		t.Fatalf("proxy trust and legacy headers must default to off")
	}
	if o.Message != ratelimit.DefaultMessage {
		t.Fatalf("message = %q", o.Message)
	}
}

func TestFromConfig_Overrides(t *testing.T) {
	t.Setenv("RL_RATE_WINDOW", "1m")
	t.Setenv("RL_RATE_LIMIT", "5")
	t.Setenv("RL_RATE_HEADERS", "Draft-6")
	t.Setenv("RL_TRUST_PROXY", "true")
	o := ratelimit.FromConfig(config.New().Prefix("RL_"))
	if o.Window != time.Minute || o.Limit != 5 || o.Headers != ratelimit.HeadersDraft6 || !o.TrustProxy {
		t.Fatalf("overrides = %+v", o)
	}

	t.Setenv("RL_RATE_HEADERS", "draft-9")
	kit.MustPanic(t, func() { _ = ratelimit.FromConfig(config.New().Prefix("RL_")) })
}
