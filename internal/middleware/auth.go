package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"licensepanel/internal/security"
)

type ctxKey int

const claimsKey ctxKey = iota

// TokenVerifier validates admin bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*security.Claims, error)
}

// ErrorResponder writes an error response.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// AdminAuth requires a valid bearer token. Browsers cannot set headers on a
// websocket handshake, so a token query parameter is accepted as well.
func AdminAuth(verifier TokenVerifier, respond ErrorResponder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				respond(w, r, security.ErrInvalidToken)
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "admin authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", ClientIP(r)),
					slog.String("error", err.Error()),
				)
				respond(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimsFromContext returns the admin claims set by AdminAuth.
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.Claims)
	return c, ok
}
