// Package request defines the per-request authorization collaborator used by the admission guard
package request

import (
	"context"
	"net/http"
)

// AnonymousSubject names callers that presented no credentials
const AnonymousSubject = "anonymous"

// Principal is the authorized caller
type Principal struct {
	Subject   string         `json:"subject"`
	Anonymous bool           `json:"anonymous"`
	Claims    map[string]any `json:"claims,omitempty"`
}

// Anonymous returns the principal for unauthenticated callers
func Anonymous() Principal {
	return Principal{Subject: AnonymousSubject, Anonymous: true}
}

// UserRequest authorizes one inbound request and records it
type UserRequest interface {
	Authorize(ctx context.Context) (Principal, error)
	Log(ctx context.Context, p Principal) error
}

// Factory builds the UserRequest for r
type Factory func(r *http.Request) UserRequest

type principalKey struct{}

// WithPrincipal annotates ctx with p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal set by the guard
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
