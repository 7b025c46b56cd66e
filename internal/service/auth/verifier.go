package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phrazzld/habits-api/internal/platform/logger"
)

// defaultLeeway absorbs clock drift between the identity provider and us.
const defaultLeeway = 30 * time.Second

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Claims are the verified token details the service relies on.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// Principal identifies the caller of a request. Token is the raw bearer
// token, forwarded to the upstream routine-task API on the caller's behalf.
type Principal struct {
	UserID string
	Token  string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// parseToken runs parser with keyFunc and converts the outcome into Claims
// or one of the package's sentinel errors.
func parseToken(
	ctx context.Context,
	parser *jwt.Parser,
	keyFunc jwt.Keyfunc,
	tokenString string,
	verifier string,
) (*Claims, error) {
	log := logger.FromContext(ctx).With("verifier", verifier)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	registered := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, registered, keyFunc)
	if err != nil {
		return nil, classifyParseError(log, err)
	}
	if !token.Valid {
		log.Debug("token validation failed: token not valid")
		return nil, ErrInvalidToken
	}
	if registered.Subject == "" {
		log.Debug("token validation failed: missing subject")
		return nil, ErrMissingSubject
	}

	claims := &Claims{
		Subject:  registered.Subject,
		Issuer:   registered.Issuer,
		Audience: registered.Audience,
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}

	log.Debug("token validated successfully",
		"subject", claims.Subject,
		"expiry", claims.ExpiresAt)
	return claims, nil
}

func classifyParseError(log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		log.Debug("token validation failed: token expired", "error", err)
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		log.Debug("token validation failed: token not yet valid", "error", err)
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		log.Debug("token validation failed: malformed token", "error", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		log.Debug("token validation failed: invalid signature", "error", err)
	default:
		log.Debug("token validation failed: other validation error",
			"error", err,
			"error_type", fmt.Sprintf("%T", err))
	}
	return ErrInvalidToken
}
