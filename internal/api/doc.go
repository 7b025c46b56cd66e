// Package api exposes the generation orchestrator over HTTP.
//
// GenerationHandler serves the /api/generation endpoints of the
// authenticated caller: starting single-template and batch runs, reading
// and resetting monitor state, ending the session and listing run history.
// EventHub streams the caller's generation events over a websocket so that
// open views refetch their task lists when jobs finish.
//
// Errors from the service layer are translated by HandleAPIError, which
// maps sentinel errors to status codes and logs redacted details with the
// request's trace ID.
package api
