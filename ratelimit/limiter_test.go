package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func drain(l *Limiter, key string, n int) {
	for i := 0; i < n; i++ {
		l.Allow(key, n)
	}
}

func TestAllowUnlimited(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		if !l.Allow("tok_a", 0) {
			t.Fatal("a zero rate is unlimited")
		}
	}
}

func TestAllowBurstThenDeny(t *testing.T) {
	l := NewWithClock(clock.NewMock())

	if !l.Allow("tok_a", 2) || !l.Allow("tok_a", 2) {
		t.Fatal("bucket starts full")
	}
	if l.Allow("tok_a", 2) {
		t.Fatal("third call in the same instant must be denied")
	}
	if !l.Allow("tok_b", 2) {
		t.Fatal("keys are independent")
	}
}

func TestAllowRefill(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)
	drain(l, "tok_a", 10)

	mock.Add(200 * time.Millisecond)

	got := 0
	for i := 0; i < 5; i++ {
		if l.Allow("tok_a", 10) {
			got++
		}
	}
	if got != 2 {
		t.Fatalf("200ms at 10/s refills 2 tokens, got %d", got)
	}

	mock.Add(time.Hour)
	got = 0
	for i := 0; i < 20; i++ {
		if l.Allow("tok_a", 10) {
			got++
		}
	}
	if got != 10 {
		t.Fatalf("refill caps at the burst size, got %d", got)
	}
}

func TestWaitBlocksForNextToken(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)
	drain(l, "tok_a", 4)

	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background(), "tok_a", 4) }()

	// Let the goroutine park on the timer before advancing.
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Wait returned before a token was available")
	default:
	}

	mock.Add(250 * time.Millisecond)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after refill")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	l := NewWithClock(clock.NewMock())
	drain(l, "tok_a", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "tok_a", 1); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestPause(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)

	l.Pause("tok_a", mock.Now().Add(30*time.Second))

	if l.Allow("tok_a", 0) {
		t.Fatal("a paused key is refused even when unlimited")
	}
	if l.Allow("tok_a", 5) {
		t.Fatal("a paused key is refused")
	}
	if !l.Allow("tok_b", 5) {
		t.Fatal("pausing one key must not affect another")
	}

	// A shorter pause does not cut the first one short.
	l.Pause("tok_a", mock.Now().Add(time.Second))
	mock.Add(10 * time.Second)
	if l.Allow("tok_a", 5) {
		t.Fatal("pause was shortened")
	}

	mock.Add(20 * time.Second)
	if !l.Allow("tok_a", 0) {
		t.Fatal("pause should be over")
	}
}

func TestPauseEmptiesBucket(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)
	l.Allow("tok_a", 10)

	l.Pause("tok_a", mock.Now().Add(time.Second))
	mock.Add(time.Second)
	if l.Allow("tok_a", 10) {
		t.Fatal("bucket refills from empty once the pause ends")
	}

	mock.Add(100 * time.Millisecond)
	if !l.Allow("tok_a", 10) {
		t.Fatal("one token after 100ms at 10/s")
	}
}

func TestWaitHonoursPause(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)
	l.Pause("tok_a", mock.Now().Add(5*time.Second))

	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background(), "tok_a", 0) }()

	time.Sleep(10 * time.Millisecond)
	mock.Add(5 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the pause ended")
	}
}

func TestReset(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock(mock)
	drain(l, "tok_a", 1)
	l.Pause("tok_a", mock.Now().Add(time.Minute))

	l.Reset("tok_a")

	if !l.Allow("tok_a", 1) {
		t.Fatal("reset clears tokens and pause")
	}
}

func TestConcurrentAllow(t *testing.T) {
	l := NewWithClock(clock.NewMock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("tok_a", 100) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Fatalf("frozen clock allows exactly the burst, got %d", allowed)
	}
}
