package middleware

import (
	"net/http"
	"net/url"

	pnet "authgate/internal/platform/net"
)

// Cookies parses the Cookie header into a name to value map annotation.
// The first occurrence of a name wins and values are percent-decoded when valid
func Cookies() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parsed := r.Cookies()
			jar := make(map[string]string, len(parsed))
			for _, c := range parsed {
				if _, seen := jar[c.Name]; seen {
					continue
				}
				v := c.Value
				if dec, err := url.PathUnescape(v); err == nil {
					v = dec
				}
				jar[c.Name] = v
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithCookies(r.Context(), jar)))
		})
	}
}
