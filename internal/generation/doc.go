// Package generation tracks server-side task-generation jobs launched from
// routine-task templates. It drives a single job or a fan-out of jobs (one per
// active template) to a terminal state by polling the remote job API, with a
// bounded wait, per-job failure tolerance and safe teardown.
//
// The package owns no I/O. Remote calls go through the JobClient and
// TemplateLister interfaces, and time goes through clock.Clock so tests can
// drive the poll and deadline timers deterministically.
package generation
