package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/mealplan-api/internal/api/shared"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/service/auth"
)

// APIKeyHeader carries a static API key.
const APIKeyHeader = "X-API-Key"

// APIKeyPrincipal is the principal recorded for API-key callers.
const APIKeyPrincipal = "api-key"

// AuthMiddleware accepts either a bearer JWT or an API key. A nil
// jwtService or keyVerifier disables that method.
type AuthMiddleware struct {
	jwtService  auth.JWTService
	keyVerifier auth.APIKeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, keyVerifier auth.APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:  jwtService,
		keyVerifier: keyVerifier,
	}
}

// Authenticate rejects requests without valid credentials and records the
// caller in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		if key := r.Header.Get(APIKeyHeader); key != "" && m.keyVerifier != nil {
			if err := m.keyVerifier.Verify(key); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid API key", err,
					shared.WithElevatedLogLevel())
				return
			}
			ctx := shared.WithPrincipal(r.Context(), APIKeyPrincipal)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || m.jwtService == nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		log.Debug("request authenticated", "subject", claims.Subject)
		ctx := shared.WithPrincipal(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
