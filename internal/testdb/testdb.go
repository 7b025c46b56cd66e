// Package testdb locates the PostgreSQL database used by integration tests.
//
// Tests skip when no database is configured, except in CI where a missing
// database is a failure.
package testdb

import (
	"os"
	"testing"

	"github.com/phrazzld/habits-api/internal/redact"
)

// Environment variables checked for the test database URL, in order.
const (
	EnvTestDatabaseURL = "HABITS_TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"
)

var ciVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"CIRCLECI",
}

// IsCI reports whether the tests run under a CI provider.
func IsCI() bool {
	for _, name := range ciVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// DatabaseURL returns the first configured test database URL, or "".
func DatabaseURL() string {
	for _, name := range []string{EnvTestDatabaseURL, EnvDatabaseURL} {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// RequireURL returns the test database URL. Without one it skips t, or
// fails it when running in CI.
func RequireURL(t testing.TB) string {
	t.Helper()
	url := DatabaseURL()
	if url != "" {
		t.Logf("using test database %s", redact.String(url))
		return url
	}
	if IsCI() {
		t.Fatalf("%s must be set in CI", EnvTestDatabaseURL)
	}
	t.Skipf("%s not set, skipping database test", EnvTestDatabaseURL)
	return ""
}
