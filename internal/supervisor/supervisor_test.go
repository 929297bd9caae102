package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var errDropped = errors.New("connection dropped")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordSleep captures requested delays without waiting.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func noJitter() *Backoff {
	return NewBackoff(1, BackoffConfig{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2.0})
}

// =============================================================================
// State
// =============================================================================

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateBackoff, "reconnecting"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	tests := []struct {
		state    State
		active   bool
		terminal bool
	}{
		{StateCreated, false, false},
		{StateRunning, true, false},
		{StateBackoff, true, false},
		{StateStopped, false, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.active {
			t.Errorf("%s.IsActive() = %v", tt.state, got)
		}
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v", tt.state, got)
		}
	}
}

// =============================================================================
// Run
// =============================================================================

func TestSupervisor_CleanFinish(t *testing.T) {
	calls := 0
	s := New(Config{
		Session:   func(ctx context.Context) error { calls++; return nil },
		Logger:    testLogger(),
		Reconnect: true,
	})

	if s.State() != StateCreated {
		t.Errorf("initial state = %s", s.State())
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("session calls = %d, want 1", calls)
	}
	if s.State() != StateStopped {
		t.Errorf("final state = %s", s.State())
	}
}

func TestSupervisor_NoReconnect(t *testing.T) {
	calls := 0
	s := New(Config{
		Session:   func(ctx context.Context) error { calls++; return errDropped },
		Logger:    testLogger(),
		Reconnect: false,
	})

	if err := s.Run(context.Background()); !errors.Is(err, errDropped) {
		t.Fatalf("Run() = %v, want errDropped", err)
	}
	if calls != 1 || s.Restarts() != 0 {
		t.Errorf("calls=%d restarts=%d", calls, s.Restarts())
	}
	if !errors.Is(s.LastError(), errDropped) {
		t.Errorf("LastError() = %v", s.LastError())
	}
}

func TestSupervisor_ReconnectsUntilSuccess(t *testing.T) {
	rec := &recordSleep{}
	var attempts []int
	calls := 0
	s := New(Config{
		Session: func(ctx context.Context) error {
			calls++
			if calls < 4 {
				return errDropped
			}
			return nil
		},
		Backoff:   noJitter(),
		Logger:    testLogger(),
		Reconnect: true,
		Sleep:     rec.sleep,
		Callbacks: Callbacks{
			OnReconnect: func(attempt int, delay time.Duration, cause error) {
				attempts = append(attempts, attempt)
			},
		},
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if calls != 4 || s.Restarts() != 3 {
		t.Errorf("calls=%d restarts=%d", calls, s.Restarts())
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v", rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
	if len(attempts) != 3 || attempts[2] != 3 {
		t.Errorf("OnReconnect attempts = %v", attempts)
	}
}

func TestSupervisor_MaxReconnects(t *testing.T) {
	rec := &recordSleep{}
	calls := 0
	s := New(Config{
		Session:       func(ctx context.Context) error { calls++; return errDropped },
		Backoff:       noJitter(),
		Logger:        testLogger(),
		Reconnect:     true,
		MaxReconnects: 2,
		Sleep:         rec.sleep,
	})

	err := s.Run(context.Background())
	if !errors.Is(err, ErrMaxReconnects) || !errors.Is(err, errDropped) {
		t.Fatalf("Run() = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSupervisor_NotRetryable(t *testing.T) {
	fatal := errors.New("404")
	calls := 0
	s := New(Config{
		Session:   func(ctx context.Context) error { calls++; return fatal },
		Logger:    testLogger(),
		Reconnect: true,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:     (&recordSleep{}).sleep,
	})

	if err := s.Run(context.Background()); !errors.Is(err, fatal) {
		t.Fatalf("Run() = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSupervisor_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	s := New(Config{
		Session: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return errDropped
		},
		Logger:    testLogger(),
		Reconnect: true,
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	if s.State() != StateRunning {
		t.Errorf("state while running = %s", s.State())
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.State() != StateStopped || s.Restarts() != 0 {
		t.Errorf("state=%s restarts=%d", s.State(), s.Restarts())
	}
}

func TestSupervisor_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{
		Session: func(ctx context.Context) error { return errDropped },
		Backoff: NewBackoff(1, BackoffConfig{Initial: time.Hour, Max: time.Hour, Multiplier: 1}),
		Logger:  testLogger(),
		Callbacks: Callbacks{
			OnStateChange: func(_, newState State) {
				if newState == StateBackoff {
					cancel()
				}
			},
		},
		Reconnect: true,
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return from backoff after cancel")
	}
}

func TestSupervisor_StateChanges(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	calls := 0
	s := New(Config{
		Session: func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return errDropped
			}
			return nil
		},
		Backoff:   noJitter(),
		Logger:    testLogger(),
		Reconnect: true,
		Sleep:     (&recordSleep{}).sleep,
		Callbacks: Callbacks{
			OnStateChange: func(_, newState State) {
				mu.Lock()
				seen = append(seen, newState)
				mu.Unlock()
			},
		},
	})

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []State{StateRunning, StateBackoff, StateRunning, StateStopped}
	if len(seen) != len(want) {
		t.Fatalf("states = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("state[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestSupervisor_UptimeWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := New(Config{
		Session: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
		Logger: testLogger(),
	})

	if s.Uptime() != 0 {
		t.Error("Uptime before Run should be 0")
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	<-started
	time.Sleep(20 * time.Millisecond)
	if s.Uptime() <= 0 {
		t.Error("Uptime while running should be positive")
	}
	close(release)
	<-done
	if s.Uptime() != 0 {
		t.Error("Uptime after stop should be 0")
	}
}
