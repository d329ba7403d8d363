package pacer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{})
	if p.Delay() != 0 {
		t.Fatalf("expected zero delay, got %v", p.Delay())
	}
	if p.clock == nil {
		t.Fatal("expected real clock to be set")
	}
}

func TestNewClampsNegativeDelay(t *testing.T) {
	p := New(Config{Delay: -time.Second})
	if p.Delay() != 0 {
		t.Fatalf("expected negative delay to clamp to 0, got %v", p.Delay())
	}
}

func TestDoWithoutDelayReturnsImmediately(t *testing.T) {
	calls := 0
	p := New(Config{})
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoWaitsForDelayAfterSuccess(t *testing.T) {
	fc := clockwork.NewFakeClock()
	p := New(Config{Delay: 10 * time.Second, Clock: fc})

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func() error {
			calls++
			return nil
		})
	}()

	fc.BlockUntil(1)
	select {
	case err := <-done:
		t.Fatalf("returned before the delay elapsed: %v", err)
	default:
	}

	fc.Advance(10 * time.Second)
	if err := <-done; err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoWaitsForDelayAfterFailure(t *testing.T) {
	fc := clockwork.NewFakeClock()
	p := New(Config{Delay: 5 * time.Second, Clock: fc})
	failure := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func() error {
			return failure
		})
	}()

	fc.BlockUntil(1)
	fc.Advance(5 * time.Second)
	if err := <-done; !errors.Is(err, failure) {
		t.Fatalf("expected op error, got %v", err)
	}
}

func TestDoSkipsOpWhenContextAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := New(Config{Delay: time.Hour}).Do(ctx, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected op not to run, got %d calls", calls)
	}
}

func TestDoStopsWaitingOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	p := New(Config{Delay: time.Hour, Clock: fc})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error { return nil })
	}()

	fc.BlockUntil(1)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoPrefersOpErrorOverCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	p := New(Config{Delay: time.Hour, Clock: fc})
	ctx, cancel := context.WithCancel(context.Background())
	failure := errors.New("request failed")

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error { return failure })
	}()

	fc.BlockUntil(1)
	cancel()
	if err := <-done; !errors.Is(err, failure) {
		t.Fatalf("expected op error, got %v", err)
	}
}

func TestDoNilContext(t *testing.T) {
	err := New(Config{}).Do(nil, func() error { return nil })
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
