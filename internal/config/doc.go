// Package config loads service settings from HABITS_-prefixed environment
// variables and an optional config.yaml, applies defaults for everything that
// is not a secret or an endpoint, and validates the result before any
// component is constructed.
package config
