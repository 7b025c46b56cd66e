package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinHMACSecretLength is the shortest accepted HS256 shared secret.
const MinHMACSecretLength = 32

// HMACVerifier validates HS256 tokens signed with a shared secret. It backs
// local development and tests, where no identity provider is running.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
	timeFunc func() time.Time
	parser   *jwt.Parser
}

var _ TokenVerifier = (*HMACVerifier)(nil)

// NewHMACVerifier creates a verifier for the given secret. Empty issuer or
// audience disables the respective check.
func NewHMACVerifier(secret, issuer, audience string) (*HMACVerifier, error) {
	return newHMACVerifier(secret, issuer, audience, time.Now)
}

func newHMACVerifier(secret, issuer, audience string, timeFunc func() time.Time) (*HMACVerifier, error) {
	if len(secret) < MinHMACSecretLength {
		return nil, fmt.Errorf("hmac secret must be at least %d characters", MinHMACSecretLength)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithTimeFunc(timeFunc),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &HMACVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		timeFunc: timeFunc,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Verify validates an HS256 token.
func (v *HMACVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	return parseToken(ctx, v.parser, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, token, "hmac")
}

// Sign issues a token for subject that expires after ttl. It mints
// development tokens; production tokens come from the identity provider.
func (v *HMACVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.timeFunc()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if v.issuer != "" {
		claims.Issuer = v.issuer
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC-SHA256: %w", err)
	}
	return signed, nil
}
