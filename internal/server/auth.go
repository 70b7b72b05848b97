package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
)

// adminSubject is the subject claim admin tokens must carry.
const adminSubject = "admin"

// verifyAdminToken checks an HS256-signed bearer token against the
// configured secret.
func verifyAdminToken(secret, token string) error {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return fmt.Errorf("malformed token: %w", err)
	}

	var claims jwt.Claims
	if err := parsed.Claims([]byte(secret), &claims); err != nil {
		return fmt.Errorf("invalid token signature: %w", err)
	}
	if err := claims.Validate(jwt.Expected{Time: time.Now()}); err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}
	if claims.Subject != adminSubject {
		return fmt.Errorf("unexpected token subject %q", claims.Subject)
	}
	return nil
}

// requireAdmin guards a handler with the bearer token check. With no
// secret configured the admin surface is disabled entirely.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminSecret == "" {
			http.Error(w, "admin endpoints are disabled", http.StatusForbidden)
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := verifyAdminToken(s.adminSecret, token); err != nil {
			log.Warn("Admin auth rejected: %v", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
