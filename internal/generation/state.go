package generation

import "time"

// State is the aggregate state exposed by a monitor.
type State string

// Possible monitor states
const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Config holds the timing parameters shared by both monitors.
type Config struct {
	// PollInterval is the spacing between status polls.
	PollInterval time.Duration

	// Timeout bounds how long a run may stay in the generating state.
	Timeout time.Duration

	// CompletionDelay postpones the batch OnAllComplete hook so that
	// read replicas can catch up before callers refetch.
	CompletionDelay time.Duration
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:    3 * time.Second,
		Timeout:         3 * time.Minute,
		CompletionDelay: time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.CompletionDelay <= 0 {
		c.CompletionDelay = d.CompletionDelay
	}
	return c
}
