// Package auth verifies bearer tokens and carries the authenticated
// Principal through request contexts.
//
// Production deployments verify RS-signed tokens from the hosted identity
// provider via its JWKS endpoint; local development uses an HS256 shared
// secret.
package auth
