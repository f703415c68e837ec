package util

import (
	"net/http"
	"strings"
)

// GatewayApiRewrite removes prefix from the request path. Used when the
// server sits behind a gateway that forwards /<prefix>/jobs as is.
func GatewayApiRewrite(prefix string) func(next http.Handler) http.Handler {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
				r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				r.URL.RawPath = ""
			}

			next.ServeHTTP(w, r)
		})
	}
}
