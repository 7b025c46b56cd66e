package generation

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/habits-api/internal/platform/clock"
)

// poller owns the two timers of a monitor run: the repeating poll timer and
// the one-shot deadline. stop is the only path that cancels them.
//
// The next poll is scheduled only after the previous tick returns, so ticks
// never overlap even when a round of status fetches outlasts the interval.
type poller struct {
	clock    clock.Clock
	interval time.Duration
	onTick   func()

	mu       sync.Mutex
	next     clock.Timer
	deadline clock.Timer
	stopped  bool
}

func startPoller(
	c clock.Clock,
	interval, timeout time.Duration,
	onTick func(),
	onTimeout func(),
) *poller {
	p := &poller{
		clock:    c,
		interval: interval,
		onTick:   onTick,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadline = c.AfterFunc(timeout, onTimeout)
	p.next = c.AfterFunc(interval, p.fire)
	return p
}

func (p *poller) fire() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.onTick()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.next = p.clock.AfterFunc(p.interval, p.fire)
}

// stop cancels both timers. It is safe to call more than once and from
// within a tick.
func (p *poller) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.next != nil {
		p.next.Stop()
	}
	if p.deadline != nil {
		p.deadline.Stop()
	}
}

// run is the per-invocation bookkeeping shared by both monitors. Monitors
// compare their current run pointer against the one captured by a callback
// to discard results that arrive after a reset or a newer run.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	poller *poller
}

func newRun(parent context.Context) *run {
	// Polling outlives the request: keep its values, not its cancellation.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &run{ctx: ctx, cancel: cancel}
}

// cleanup stops the timers and aborts in-flight remote calls.
func (r *run) cleanup() {
	if r == nil {
		return
	}
	r.poller.stop()
	r.cancel()
}
