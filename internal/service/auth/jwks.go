package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSVerifier validates RS256/384/512 tokens issued by the hosted identity
// provider, resolving signing keys from its JWKS endpoint.
type JWKSVerifier struct {
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

var _ TokenVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed until
// ctx is cancelled. When jwksURL is empty it is derived from the issuer.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	issuer = strings.TrimSpace(issuer)
	if jwksURL == "" {
		if issuer == "" {
			return nil, errors.New("jwks url or issuer must be set")
		}
		jwksURL = normalizeIssuer(issuer) + ".well-known/jwks.json"
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}
	return newJWKSVerifier(kf, issuer, audience), nil
}

func newJWKSVerifier(kf keyfunc.Keyfunc, issuer, audience string) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
		}),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWKSVerifier{keyfunc: kf, parser: jwt.NewParser(opts...)}
}

// Verify validates a token signed by one of the provider's current keys.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	return parseToken(ctx, v.parser, v.keyfunc.Keyfunc, token, "jwks")
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}
