package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	applog "tally/internal/log"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// requireAuth resolves the bearer token into a user ID before the handler
// runs. A missing token is a 401, a token that fails verification is a 403;
// neither response says anything more specific.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		token = strings.TrimSpace(token)
		if userID, ok := s.tokenCache.Get(token); ok {
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next(w, r.WithContext(ctx))
			return
		}

		claims, err := s.tokens.VerifyClaims(token)
		if err != nil {
			s.logger.WarnContext(r.Context(), "Token verification failed",
				applog.FieldPath, r.URL.Path,
				applog.FieldError, err)
			respondAuthError(w, http.StatusForbidden, "invalid or expired token")
			return
		}

		userID := claims.UserID
		// Cache the verification result no longer than the token is valid.
		if claims.ExpiresAt != nil {
			s.tokenCache.SetWithTTL(token, userID, time.Until(claims.ExpiresAt.Time))
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// callerID returns the authenticated user ID stored by requireAuth.
func callerID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}
