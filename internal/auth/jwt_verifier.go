package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// allowedAlgorithms prevents algorithm confusion (no HS256 with a public key, no "none")
var allowedAlgorithms = []string{"RS256", "ES256"}

// JWKSVerifier implements JWTVerifier with keys from a JWKS endpoint.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from jwksURL.
// keyfunc caches the keys and refreshes them in the background until Close.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("jwt verifier initialized", "jwks_url", jwksURL)
	return &JWKSVerifier{jwks: jwks, cancel: cancel, logger: logger}, nil
}

// NewStaticJWTVerifier creates a verifier from an inline JWK set.
// Used by the admin CLI and tests.
func NewStaticJWTVerifier(jwkSet json.RawMessage, logger *slog.Logger) (JWTVerifier, error) {
	jwks, err := keyfunc.NewJWKSetJSON(jwkSet)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWK set: %w", err)
	}
	return &JWKSVerifier{jwks: jwks, cancel: func() {}, logger: logger}, nil
}

// VerifyToken validates a JWT and extracts the claims
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		v.logger.Warn("token claims could not be extracted")
		return nil, domain.ErrUnauthorized
	}

	if _, err := claims.UserID(); err != nil {
		v.logger.Debug("token subject is not a user id", "subject", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close stops the background key refresh
func (v *JWKSVerifier) Close() error {
	v.cancel()
	v.logger.Info("jwt verifier closed")
	return nil
}
