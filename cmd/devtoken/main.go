// Package main mints HS256 bearer tokens for local development against a
// server configured with auth.hmac_secret.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/phrazzld/habits-api/internal/service/auth"
)

func main() {
	if err := Run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

// Run parses args and writes one signed token to stdout.
func Run(_ context.Context, args []string, stdout io.Writer) error {
	app := kingpin.New("devtoken", "Mint a development bearer token for the habits API.")
	app.Terminate(nil)
	app.UsageWriter(stdout)
	app.ErrorWriter(stdout)

	var (
		subject  string
		ttl      time.Duration
		secret   string
		issuer   string
		audience string
	)
	app.Flag("subject", "User ID placed in the sub claim.").Short('s').Required().StringVar(&subject)
	app.Flag("ttl", "Token lifetime.").Default("1h").DurationVar(&ttl)
	app.Flag("secret", "HMAC secret shared with the server.").Envar("HABITS_AUTH_HMAC_SECRET").Required().StringVar(&secret)
	app.Flag("issuer", "Issuer claim.").Envar("HABITS_AUTH_ISSUER").StringVar(&issuer)
	app.Flag("audience", "Audience claim.").Envar("HABITS_AUTH_AUDIENCE").StringVar(&audience)

	if _, err := app.Parse(args); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	signer, err := auth.NewHMACVerifier(secret, issuer, audience)
	if err != nil {
		return fmt.Errorf("could not create signer: %w", err)
	}
	token, err := signer.Sign(subject, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, token)
	return err
}
