package auth

import (
	"context"
	"errors"

	"github.com/phrazzld/habits-api/internal/config"
)

// NewVerifier builds the verifier selected by cfg: JWKS when a key set URL
// is configured, otherwise HMAC with the shared secret.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (TokenVerifier, error) {
	switch {
	case cfg.JWKSURL != "":
		return NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	case cfg.HMACSecret != "":
		return NewHMACVerifier(cfg.HMACSecret, cfg.Issuer, cfg.Audience)
	default:
		return nil, errors.New("no token verifier configured")
	}
}
