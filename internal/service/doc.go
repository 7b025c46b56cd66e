// Package service contains the application-level use cases of habits-api.
//
// GenerationService owns one generation session per authenticated user. A
// session pairs a SingleMonitor with a BatchMonitor from internal/generation
// and binds both to an upstream client that forwards the caller's bearer
// token. Monitor hooks are turned into events (internal/events) so that
// open views can refetch and finished runs can be recorded as history.
//
// Sessions live only in memory. Idle sessions are torn down by a reaper loop
// and every session is torn down on Shutdown.
package service
