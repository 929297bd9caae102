package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrMaxReconnects is returned when the reconnect budget is spent.
var ErrMaxReconnects = errors.New("max reconnects reached")

// SessionFunc runs one connection until it ends. A nil return means the
// session finished on purpose and should not be retried.
type SessionFunc func(ctx context.Context) error

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the supervisor state changes.
	OnStateChange func(oldState, newState State)

	// OnReconnect is called before a reconnect attempt.
	OnReconnect func(attempt int, delay time.Duration, cause error)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Session       SessionFunc
	Backoff       *Backoff
	Logger        *slog.Logger
	Callbacks     Callbacks
	Reconnect     bool
	MaxReconnects int // 0 = unlimited

	// Retryable decides whether a session error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	// Sleep waits between attempts. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Supervisor runs a session and reconnects it with backoff when it fails.
type Supervisor struct {
	session       SessionFunc
	backoff       *Backoff
	logger        *slog.Logger
	callbacks     Callbacks
	reconnect     bool
	maxReconnects int
	retryable     func(error) bool
	sleep         func(ctx context.Context, d time.Duration) error

	stateMu   sync.RWMutex
	state     State
	startTime time.Time
	restarts  int
	lastErr   error
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NewBackoff(time.Now().UnixNano(), DefaultBackoffConfig())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepTimer
	}
	return &Supervisor{
		session:       cfg.Session,
		backoff:       backoff,
		logger:        logger,
		callbacks:     cfg.Callbacks,
		reconnect:     cfg.Reconnect,
		maxReconnects: cfg.MaxReconnects,
		retryable:     cfg.Retryable,
		sleep:         sleep,
		state:         StateCreated,
	}
}

// Run starts the supervision loop. It returns when the context is
// cancelled, a session ends cleanly, a session fails with reconnects
// disabled or a non-retryable error, or the reconnect budget runs out.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateStopped)
			return err
		}

		s.setState(StateRunning)
		start := time.Now()
		s.stateMu.Lock()
		s.startTime = start
		s.stateMu.Unlock()

		err := s.session(ctx)
		uptime := time.Since(start)

		if ctx.Err() != nil {
			s.setState(StateStopped)
			return ctx.Err()
		}
		if err == nil {
			s.setState(StateStopped)
			s.logger.Debug("session_finished", "uptime", uptime.String())
			return nil
		}

		s.stateMu.Lock()
		s.lastErr = err
		s.stateMu.Unlock()

		if !s.reconnect || (s.retryable != nil && !s.retryable(err)) {
			s.setState(StateStopped)
			return err
		}
		if s.maxReconnects > 0 && s.Restarts() >= s.maxReconnects {
			s.setState(StateStopped)
			s.logger.Warn("max_reconnects_reached",
				"reconnects", s.Restarts(),
				"max", s.maxReconnects,
			)
			return errors.Join(ErrMaxReconnects, err)
		}

		if ShouldReset(uptime) {
			s.backoff.Reset()
		}
		delay := s.backoff.Next()

		s.stateMu.Lock()
		s.restarts++
		attempt := s.restarts
		s.stateMu.Unlock()

		if s.callbacks.OnReconnect != nil {
			s.callbacks.OnReconnect(attempt, delay, err)
		}
		s.logger.Info("reconnect_scheduled",
			"attempt", attempt,
			"delay", delay.String(),
			"uptime", uptime.String(),
			"error", err,
		)

		s.setState(StateBackoff)
		if err := s.sleep(ctx, delay); err != nil {
			s.setState(StateStopped)
			return err
		}
	}
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current supervisor state.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if oldState != newState && s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// Restarts returns the number of reconnect attempts so far.
func (s *Supervisor) Restarts() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.restarts
}

// LastError returns the error that ended the most recent failed session.
func (s *Supervisor) LastError() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

// Uptime returns how long the current session has been running, or 0 when
// no session is running.
func (s *Supervisor) Uptime() time.Duration {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.state != StateRunning || s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}
