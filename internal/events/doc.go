// Package events carries generation notifications from the per-user
// monitors to whoever listens: open browser views over websocket and the
// run-history recorder.
//
// Emitters know nothing about handlers. A failing handler never prevents
// the remaining handlers from seeing an event.
package events
