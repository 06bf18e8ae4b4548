// Package middleware holds the REST service's cross-cutting HTTP handlers:
// bearer-token auth and per-client rate limiting.
//
// Grounded on therealutkarshpriyadarshi-vector/pkg/api/rest/middleware — kept
// close to verbatim since HTTP auth/rate-limiting is domain-agnostic; the
// registration service has no roles beyond "authenticated" so AdminPaths/
// RequireAdmin are dropped rather than carried for a role this service never
// has.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds bearer-token authentication configuration.
type AuthConfig struct {
	JWTSecret   string
	Enabled     bool
	PublicPaths []string // path prefixes that skip authentication, e.g. "/healthz"
}

// Claims is the JWT payload a registration-service caller presents.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

type contextKey string

// CallerContextKey is the context key AuthMiddleware stores validated
// Claims under.
const CallerContextKey contextKey = "caller"

// AuthMiddleware validates a Bearer JWT on every request whose path is not
// listed in PublicPaths, storing its Claims in the request context.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			for _, path := range cfg.PublicPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSONError(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeJSONError(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeJSONError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext retrieves the caller's validated Claims, if any.
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(CallerContextKey).(*Claims)
	return claims, ok
}

// GenerateToken issues a signed JWT for a caller, for development/testing.
func GenerateToken(subject, secret string) (string, error) {
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "pointcloudkit",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"error": "%s", "status": %d}`, message, statusCode)
}
