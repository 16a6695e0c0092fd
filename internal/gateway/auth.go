package gateway

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flemzord/tabllm/internal/security"
)

type clientKey struct{}

// clientFrom returns the authenticated client identity stored by the auth
// middleware, or the remote host when auth is disabled.
func clientFrom(r *http.Request) string {
	if c, ok := r.Context().Value(clientKey{}).(string); ok && c != "" {
		return c
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authMiddleware accepts a bearer token, basic credentials or an HS256
// JWT, compared in constant time. The identity is stored on the request
// context for rate limiting and the audit trail: the JWT subject, the basic
// user, or "bearer".
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, reason := authenticate(cfg, r)
			if client == "" {
				audit.Log(security.AuditEvent{
					Type:   security.EventAuthFailure,
					Client: clientFrom(r),
					Detail: reason,
					Metadata: map[string]string{
						"method": r.Method,
						"path":   r.URL.Path,
					},
				})
				w.Header().Set("WWW-Authenticate", `Bearer realm="tabllm"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", reason)
				return
			}
			ctx := context.WithValue(r.Context(), clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(cfg AuthConfig, r *http.Request) (client, reason string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}

	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if cfg.BearerToken != "" && constantTimeEqual(token, cfg.BearerToken) {
			return "bearer", ""
		}
		if cfg.JWT.Secret != "" {
			sub, err := verifyJWT(cfg.JWT, token)
			if err == nil {
				return sub, ""
			}
			return "", "invalid token: " + err.Error()
		}
		return "", "invalid bearer token"
	}

	if cfg.BasicUser != "" && cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
			return user, ""
		}
	}
	return "", "invalid credentials"
}

// verifyJWT checks an HS256 token and returns its subject ("jwt" when the
// token has none).
func verifyJWT(cfg JWTConfig, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "jwt", nil
	}
	return claims.Subject, nil
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
