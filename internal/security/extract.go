package security

import (
	"net/http"
	"strings"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAccessToken   = "x-access-token"
	HeaderRole          = "role"
)

// ExtractToken reads "Authorization: Bearer <t>" first and falls back to the
// token-only header.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get(HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAccessToken))
}
