package auth

import (
	"net/http"
	"strings"
)

// ExtractReviewToken returns the signed review token of a staff request: the
// link's query parameter first, then an Authorization bearer header.
func ExtractReviewToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
