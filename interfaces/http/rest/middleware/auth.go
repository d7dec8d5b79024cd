package middleware

import (
	"net/http"
	"strings"

	"relmap/application/ports"
	"relmap/pkg/auth"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// Authenticate resolves the bearer token into a principal stored in the request context.
// Requests without a valid token never reach next.
func Authenticate(provider ports.IdentityProvider, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errorHandler.Handle(w, r, pkgerrors.NewAuthRequiredError("missing authentication token"))
				return
			}

			principal, err := provider.Authenticate(r.Context(), token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", clientIP(r)),
					zap.String("path", r.URL.Path),
				)
				if !pkgerrors.IsAuthRequired(err) {
					err = pkgerrors.NewAuthRequiredError("invalid token").WithCause(err)
				}
				errorHandler.Handle(w, r, err)
				return
			}

			logger.Debug("Request authenticated",
				zap.String("userID", principal.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RateLimit rejects callers exceeding their budget. Authenticated callers are
// keyed by user, anonymous ones by client IP.
func RateLimit(limiter *auth.RateLimiter, perMinute int, errorHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if principal, ok := auth.PrincipalFrom(r.Context()); ok {
				key = "user:" + principal.UserID
			}

			if !limiter.Allow(key) {
				errorHandler.Handle(w, r, pkgerrors.NewRateLimitError(perMinute, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the token from the Authorization header, the auth_token
// cookie, then the token query parameter
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(header)
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
