package middleware

import (
	"net/http"
	"strings"
)

// HomePath is where gated requests without a session are sent.
const HomePath = "/"

// Gate redirects requests under any of prefixes to HomePath unless they carry
// an active session. It runs before routing, so gated paths need no handler
// of their own to be protected.
func Gate(resolver SessionResolver, prefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gated(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := resolver.GetSession(r.Context(), r.Header)
			if err != nil {
				http.Redirect(w, r, HomePath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// gated matches whole path segments: "/orders" gates "/orders" and
// "/orders/1" but not "/ordersummary".
func gated(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimRight(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
