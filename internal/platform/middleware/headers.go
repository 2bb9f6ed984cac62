package middleware

import (
	"net/http"
	"strings"
)

var hardeningHeaders = [][2]string{
	{"Cache-Control", "no-store"},
	{"Content-Security-Policy", "frame-ancestors 'none'"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Referrer-Policy", "no-referrer"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
}

// Headers sets response hardening headers and adds Accept to Vary, since the
// body format (JSON or CBOR) is negotiated from it. Responses for paths under
// any of skipPrefixes only get the Vary entry so the docs UI keeps working.
//
// Auth responses carry tokens, so Cache-Control: no-store matters here.
func Headers(skipPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Accept")
			if !hasAnyPrefix(r.URL.Path, skipPrefixes) {
				for _, kv := range hardeningHeaders {
					h.Set(kv[0], kv[1])
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
