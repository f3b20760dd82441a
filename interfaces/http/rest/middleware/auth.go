package middleware

import (
	"context"
	"net/http"
	"strings"

	"atlas-graph/pkg/auth"
	"atlas-graph/pkg/common"

	"go.uber.org/zap"
)

// RateLimiter is the per-key admission check the auth middleware applies
// after a token is validated.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Authenticator validates bearer tokens and rate-limits callers. The
// limiter may be nil, in which case no limiting is applied.
type Authenticator struct {
	validator *auth.JWTValidator
	limiter   RateLimiter
	logger    *zap.Logger
}

// NewAuthenticator creates the auth middleware.
func NewAuthenticator(validator *auth.JWTValidator, limiter RateLimiter, logger *zap.Logger) *Authenticator {
	return &Authenticator{validator: validator, limiter: limiter, logger: logger}
}

// Middleware rejects requests without a valid bearer token and attaches
// the caller to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication token")
			return
		}

		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			a.logger.Warn("Token rejected",
				zap.Error(err),
				zap.String("ip", clientIP(r)),
				zap.String("path", r.URL.Path),
			)
			switch err {
			case auth.ErrExpiredToken:
				common.RespondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired")
			default:
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			}
			return
		}

		if a.limiter != nil {
			allowed, err := a.limiter.Allow(r.Context(), claims.UserID)
			if err != nil {
				// A broken limiter must not take the API down.
				a.logger.Warn("Rate limiter unavailable", zap.Error(err))
			} else if !allowed {
				common.RespondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
		}

		user := &auth.UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  claims.Roles,
		}
		ctx := auth.SetUserInContext(r.Context(), user)
		ctx = common.WithUserID(ctx, claims.UserID)
		ctx = common.WithUserRoles(ctx, claims.Roles)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route on the caller holding any of the given roles.
// It must run after the Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			for _, required := range roles {
				for _, held := range user.Roles {
					if held == required {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			common.RespondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		})
	}
}

// extractToken pulls the bearer token from the Authorization header or,
// failing that, the auth_token cookie.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return header
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
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
