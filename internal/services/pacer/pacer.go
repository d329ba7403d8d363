package pacer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config controls pacing behavior.
type Config struct {
	// Delay is the pause taken after every call, successful or not.
	// Zero disables pacing; negative values are treated as zero.
	Delay time.Duration

	// Clock allows tests to substitute a fake clock. If nil, the real clock is used.
	Clock clockwork.Clock
}

// DefaultDelay matches the pause NeoCities asks API clients to keep between calls.
const DefaultDelay = 10 * time.Second

// Pacer serializes the calls of one client behind a fixed delay. It behaves
// like a token bucket with capacity 1 that refills once per Delay.
type Pacer struct {
	delay time.Duration
	clock clockwork.Clock
}

// New creates a Pacer from cfg.
func New(cfg Config) *Pacer {
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Pacer{
		delay: delay,
		clock: clock,
	}
}

// Delay returns the configured pause.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Do executes op once and then waits for the configured delay before
// returning, regardless of op's outcome. The error from op takes precedence
// over a cancellation that happens during the wait.
func (p *Pacer) Do(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Honor cancellation before issuing the call.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := op()
	waitErr := p.Wait(ctx)
	if err != nil {
		return err
	}
	return waitErr
}

// Wait blocks for the configured delay or until ctx is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay == 0 {
		return nil
	}

	select {
	case <-p.clock.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
