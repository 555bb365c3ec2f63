package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	perr "authgate/internal/platform/errors"
	"authgate/internal/platform/metrics"
	pnet "authgate/internal/platform/net"
	phttp "authgate/internal/platform/net/http"
)

// DefaultBodyLimit is the JSON body ceiling
const DefaultBodyLimit int64 = 128 << 10

// BodyOptions configures JSON body parsing
type BodyOptions struct {
	Limit   int64 // bytes; <= 0 uses DefaultBodyLimit
	Metrics *metrics.Metrics
}

// JSONBody parses application/json bodies up to the limit and attaches the result
// as a pnet.Body annotation. Oversized bodies halt with 413, malformed ones with 400.
// Requests without a JSON content type pass through untouched
func JSONBody(o BodyOptions) func(http.Handler) http.Handler {
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasBody(r) || !isJSON(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := readLimited(w, r, limit)
			if err == nil {
				err = checkJSON(raw)
			}
			if err != nil {
				o.Metrics.Halt("body", perr.HTTPStatus(err))
				if r.Context().Err() != nil {
					return
				}
				phttp.RespondError(w, r, err)
				return
			}

			b := pnet.Body{Raw: raw, Value: map[string]any{}}
			if len(bytes.TrimSpace(raw)) > 0 {
				_ = json.Unmarshal(raw, &b.Value)
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			next.ServeHTTP(w, r.WithContext(pnet.WithBody(r.Context(), b)))
		})
	}
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && (r.ContentLength != 0 || len(r.TransferEncoding) > 0)
}

// isJSON matches application/json and application/*+json
func isJSON(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, perr.TooLargef("request entity too large")
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, perr.TooLargef("request entity too large")
		}
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "request aborted")
	}
	return raw, nil
}

// checkJSON accepts only an object or array at the top level; whitespace only is an empty body
func checkJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if c := trimmed[0]; c != '{' && c != '[' {
		return perr.JSONErrf("invalid JSON: body must be an object or array")
	}
	if !json.Valid(trimmed) {
		var v any
		err := json.Unmarshal(trimmed, &v)
		return perr.WithField(perr.JSONErrf("invalid JSON: %v", err), "body")
	}
	return nil
}
