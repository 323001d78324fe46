package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/arnaud-morvan/v6-api/internal/auth"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	"github.com/arnaud-morvan/v6-api/internal/httputil"
)

// AuthMiddleware resolves the bearer token into an actor.
//
// Requests without an Authorization header continue anonymously: reads are
// public and services reject anonymous writes. A header that is present but
// malformed or invalid is always a 401.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			actor, err := models.ActorFromClaims(claims)
			if err != nil {
				logger.Warn("verified token without a user id", "subject", claims.Subject)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithActor(r, actor))
		})
	}
}
