// Package net holds request annotations shared by the admission stages and
// the transport envelopes they reply with
package net

import (
	"context"
	"encoding/json"
	"maps"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keySubject   ctxKey = "subject"
	keyClientKey ctxKey = "client_key"
	keyCookies   ctxKey = "cookies"
	keyBody      ctxKey = "json_body"
	keyRateLimit ctxKey = "rate_limit"
)

// Body is a parsed JSON request body
// Raw keeps the exact bytes so handlers can bind into their own types
type Body struct {
	Raw   json.RawMessage
	Value any
}

// RateLimit describes the caller's standing in the current window
type RateLimit struct {
	Limit     int
	Used      int
	Remaining int
	ResetAt   time.Time
}

// WithRequest annotates context with the request correlation id
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// WithSubject annotates context with the authorized principal's subject
func WithSubject(ctx context.Context, subject string) context.Context {
	if subject != "" {
		ctx = context.WithValue(ctx, keySubject, subject)
	}
	return ctx
}

// Subject returns the authorized subject on the context if present
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(keySubject).(string); ok {
		return v
	}
	return ""
}

// WithClientKey annotates context with the rate limit client key
func WithClientKey(ctx context.Context, key string) context.Context {
	if key != "" {
		ctx = context.WithValue(ctx, keyClientKey, key)
	}
	return ctx
}

// ClientKey returns the rate limit client key on the context if present
func ClientKey(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientKey).(string); ok {
		return v
	}
	return ""
}

// WithCookies annotates context with parsed cookies
func WithCookies(ctx context.Context, c map[string]string) context.Context {
	return context.WithValue(ctx, keyCookies, c)
}

// Cookies returns a copy of the parsed cookies, never nil
func Cookies(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(keyCookies).(map[string]string); ok {
		return maps.Clone(v)
	}
	return map[string]string{}
}

// WithBody annotates context with a parsed JSON body
func WithBody(ctx context.Context, b Body) context.Context {
	return context.WithValue(ctx, keyBody, b)
}

// JSONBody returns the parsed JSON body if the body stage produced one
func JSONBody(ctx context.Context) (Body, bool) {
	b, ok := ctx.Value(keyBody).(Body)
	return b, ok
}

// WithRateLimit annotates context with the caller's rate limit standing
func WithRateLimit(ctx context.Context, rl RateLimit) context.Context {
	return context.WithValue(ctx, keyRateLimit, rl)
}

// RateLimitInfo returns the caller's rate limit standing if the limiter ran
func RateLimitInfo(ctx context.Context) (RateLimit, bool) {
	rl, ok := ctx.Value(keyRateLimit).(RateLimit)
	return rl, ok
}
