// Package poller drives periodic stats retrieval from a SampleSource into a
// stats.ChannelSet.
//
// All channel mutation happens on the goroutine running Run. Retrieval runs in
// a separate goroutine, at most one at a time; ticks that arrive while a
// retrieval is outstanding are dropped.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
	"github.com/randomizedcoder/go-whep-stats/internal/timeseries"
)

// DefaultInterval is the poll period.
const DefaultInterval = time.Second

// ErrTransportUnavailable means the source can no longer produce snapshots.
// It is terminal for a poller.
var ErrTransportUnavailable = errors.New("transport unavailable")

// ErrAlreadyRunning is returned by Run on a poller that has left idle.
var ErrAlreadyRunning = errors.New("poller already started")

// SampleSource produces one snapshot per call.
type SampleSource interface {
	// Snapshot retrieves the current counters, partitioned by kind.
	Snapshot(ctx context.Context) (stats.Snapshot, error)

	// Alive reports whether the underlying transport is still usable.
	Alive() bool
}

// State is the poller lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Callbacks are invoked from the Run goroutine.
type Callbacks struct {
	// OnTick fires after every ingested snapshot.
	OnTick func()
	// OnSkip fires when a tick is dropped because a retrieval is in flight.
	OnSkip func()
	// OnError fires for non-terminal retrieval errors.
	OnError func(err error)
}

// Config configures a Poller.
type Config struct {
	Source    SampleSource
	Set       *stats.ChannelSet
	Interval  time.Duration
	Logger    *slog.Logger
	Clock     timeseries.Clock
	Callbacks Callbacks
}

type result struct {
	snapshot stats.Snapshot
	err      error
}

// Poller polls a SampleSource on a fixed interval.
type Poller struct {
	src       SampleSource
	set       *stats.ChannelSet
	interval  time.Duration
	logger    *slog.Logger
	clock     timeseries.Clock
	callbacks Callbacks

	// tick overrides the interval ticker in tests.
	tick <-chan time.Time

	mu        sync.Mutex
	state     State
	startedAt time.Time
	stoppedAt time.Time
	done      chan struct{}

	inFlight atomic.Bool
	polls    atomic.Uint64
	skipped  atomic.Uint64
	errs     atomic.Uint64
}

// New creates an idle poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeseries.RealClock()
	}
	return &Poller{
		src:       cfg.Source,
		set:       cfg.Set,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		callbacks: cfg.Callbacks,
		done:      make(chan struct{}),
	}
}

// Run polls until ctx is cancelled, Stop is called or the transport goes away.
// It returns ErrTransportUnavailable in the last case and nil otherwise.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		stopped := p.state == StateStopped
		p.mu.Unlock()
		if stopped {
			return nil
		}
		return ErrAlreadyRunning
	}
	p.state = StatePolling
	p.startedAt = p.clock.Now()
	p.mu.Unlock()

	p.logger.Info("poller_started", "interval", p.interval.String())

	ticks := p.tick
	if ticks == nil {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	// Buffered so an outstanding retrieval never blocks once the loop exits.
	results := make(chan result, 1)

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return nil

		case <-p.done:
			return nil

		case <-ticks:
			if !p.src.Alive() {
				p.logger.Warn("transport_gone")
				p.Stop()
				return ErrTransportUnavailable
			}
			p.dispatch(ctx, results)

		case r := <-results:
			p.inFlight.Store(false)
			if err := p.handle(r); err != nil {
				p.Stop()
				return err
			}
		}
	}
}

// dispatch starts one retrieval unless one is already outstanding.
func (p *Poller) dispatch(ctx context.Context, results chan<- result) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.Debug("tick_skipped", "reason", "retrieval_in_flight")
		if p.callbacks.OnSkip != nil {
			p.callbacks.OnSkip()
		}
		return
	}

	go func() {
		snap, err := p.src.Snapshot(ctx)
		results <- result{snapshot: snap, err: err}
	}()
}

// handle ingests one retrieval result. Results arriving after Stop are
// discarded.
func (p *Poller) handle(r result) error {
	if r.err != nil {
		if !p.active() {
			return nil
		}
		if errors.Is(r.err, ErrTransportUnavailable) {
			p.logger.Warn("transport_unavailable", "error", r.err)
			return ErrTransportUnavailable
		}
		p.errs.Add(1)
		p.logger.Warn("poll_failed", "error", r.err)
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(r.err)
		}
		return nil
	}

	if !p.ingest(r.snapshot) {
		p.logger.Debug("late_result_discarded")
		return nil
	}
	p.polls.Add(1)

	if p.callbacks.OnTick != nil {
		p.callbacks.OnTick()
	}
	return nil
}

// ingest routes the snapshot in kind order and recomputes loss. It holds the
// lock so Stop cannot reset the set mid-update.
func (p *Poller) ingest(snap stats.Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePolling {
		return false
	}
	for _, kind := range stats.Kinds {
		if s, ok := snap[kind]; ok {
			p.set.Route(kind, s)
		}
	}
	p.set.UpdateLoss()
	return true
}

func (p *Poller) active() bool {
	return p.State() == StatePolling
}

// Stop halts polling and zeroes the channel set's current readings. Live
// history is kept. Calling Stop more than once is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopped {
		return
	}
	wasPolling := p.state == StatePolling
	p.state = StateStopped
	p.stoppedAt = p.clock.Now()
	close(p.done)

	if p.set != nil {
		p.set.Reset()
	}
	if wasPolling {
		p.logger.Info("poller_stopped",
			"polls", p.polls.Load(),
			"skipped", p.skipped.Load(),
			"errors", p.errs.Load(),
		)
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Elapsed returns the time since Run started, frozen once stopped.
func (p *Poller) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		return 0
	}
	if p.state == StateStopped {
		return p.stoppedAt.Sub(p.startedAt)
	}
	return p.clock.Now().Sub(p.startedAt)
}

// Polls returns the number of ingested snapshots.
func (p *Poller) Polls() uint64 { return p.polls.Load() }

// Skipped returns the number of ticks dropped while a retrieval was in flight.
func (p *Poller) Skipped() uint64 { return p.skipped.Load() }

// Errors returns the number of failed retrievals.
func (p *Poller) Errors() uint64 { return p.errs.Load() }
