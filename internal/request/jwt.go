package request

import (
	"context"
	"net/http"
	"strings"
	"time"

	perr "authgate/internal/platform/errors"
	"authgate/internal/platform/logger"
	pnet "authgate/internal/platform/net"

	"github.com/golang-jwt/jwt/v5"
)

// JWTOptions configures the bearer token UserRequest
type JWTOptions struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration

	// Audit receives one record per admitted request; defaults to the "audit" component logger
	Audit *logger.Logger
}

// NewJWTFactory returns a Factory verifying optional HS256 bearer tokens
func NewJWTFactory(o JWTOptions) Factory {
	if o.Audit == nil {
		o.Audit = logger.Named("audit")
	}
	return func(r *http.Request) UserRequest {
		return &jwtRequest{opt: o, r: r}
	}
}

type jwtRequest struct {
	opt JWTOptions
	r   *http.Request
}

// Authorize returns the anonymous principal when no token is sent, or the token subject
func (q *jwtRequest) Authorize(ctx context.Context) (Principal, error) {
	h := strings.TrimSpace(q.r.Header.Get("Authorization"))
	if h == "" {
		return Anonymous(), nil
	}

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Principal{}, perr.Unauthorizedf("authorize: expected a bearer token")
	}
	if len(q.opt.Secret) == 0 {
		return Principal{}, perr.Unauthorizedf("authorize: token verification is not configured")
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(q.opt.Leeway),
	}
	if q.opt.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(q.opt.Issuer))
	}
	if q.opt.Audience != "" {
		popts = append(popts, jwt.WithAudience(q.opt.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return q.opt.Secret, nil
	}, popts...)
	if err != nil {
		return Principal{}, perr.Wrap(err, perr.ErrorCodeUnauthorized, "authorize: invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, perr.Unauthorizedf("authorize: token has no subject")
	}
	return Principal{Subject: sub, Claims: claims}, nil
}

// Log writes the audit record for p
func (q *jwtRequest) Log(ctx context.Context, p Principal) error {
	if p.Subject == "" {
		return perr.InvalidArgf("log: principal has no subject")
	}
	q.opt.Audit.Info().
		Str("request_id", pnet.RequestID(ctx)).
		Str("method", q.r.Method).
		Str("path", q.r.URL.Path).
		Str("client", pnet.ClientKey(ctx)).
		Str("subject", p.Subject).
		Bool("anonymous", p.Anonymous).
		Msg("request admitted")
	return nil
}
