package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bookline/resync/cache"
	"github.com/bookline/resync/diff"
)

// Source fetches one snapshot of server state, e.g. counts-by-status for a
// collection. One round trip per call.
type Source func(ctx context.Context) (*diff.Snapshot, error)

// Config configures a Monitor.
type Config struct {
	// Interval is the polling cadence.
	Interval time.Duration

	// Source fetches the snapshot each tick.
	Source Source

	// OnTransition is invoked for every transition whose direction is not
	// Unchanged. This is the hook that turns raw counts into user-facing
	// notifications; the monitor itself performs no presentation side
	// effects.
	OnTransition func(t diff.Transition)

	// OnError is invoked when a tick's fetch fails. The monitor keeps
	// polling; a failed tick never stops it.
	OnError func(err error)

	// Timeout bounds each tick's fetch. If zero, the interval is used.
	Timeout time.Duration

	// Logger is the debug logger. If nil, no-op.
	Logger cache.Logger

	// DebugMode enables debug logging.
	DebugMode bool
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("monitor: interval must be positive")
	}
	if c.Source == nil {
		return errors.New("monitor: source is required")
	}
	return nil
}

// Monitor polls a snapshot source on a fixed cadence and diffs successive
// snapshots into discrete transition events. It maintains its own last-seen
// snapshot privately and never writes to the cache store.
type Monitor struct {
	config  Config
	logger  cache.Logger
	last    *diff.Snapshot
	ticking int32 // a tick's fetch is outstanding
	started int32
	stopped int32
	done    chan struct{}
	wg      sync.WaitGroup
	// generation invalidates in-flight responses once Stop is called, so a
	// late-arriving snapshot is discarded instead of firing callbacks.
	generation int64
}

// New creates a monitor in the Stopped state.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = cache.NewNoOpLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Monitor{
		config: cfg,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}, nil
}

// Start begins the tick loop. Starting twice or starting a stopped monitor
// is an error.
func (m *Monitor) Start() error {
	if atomic.LoadInt32(&m.stopped) != 0 {
		return errors.New("monitor: already stopped")
	}
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return errors.New("monitor: already started")
	}

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop halts polling. Safe to call from any state and idempotent. After Stop
// returns no further callback will be invoked, even for a fetch that was
// already in flight: the late response is discarded, not applied.
func (m *Monitor) Stop() {
	if !atomic.CompareAndSwapInt32(&m.stopped, 0, 1) {
		return
	}
	atomic.AddInt64(&m.generation, 1)
	close(m.done)
	m.wg.Wait()
}

// Running reports whether the monitor is still polling.
func (m *Monitor) Running() bool {
	return atomic.LoadInt32(&m.stopped) == 0
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			if m.config.DebugMode {
				m.logger.Debug("monitor: stopped")
			}
			return
		case <-ticker.C:
			// Skip the tick entirely while a previous fetch is still
			// outstanding; concurrent load is bounded to one request per
			// monitor no matter how slow the server is.
			if !atomic.CompareAndSwapInt32(&m.ticking, 0, 1) {
				if m.config.DebugMode {
					m.logger.Debug("monitor: skipping tick, fetch outstanding")
				}
				continue
			}
			generation := atomic.LoadInt64(&m.generation)
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				defer atomic.StoreInt32(&m.ticking, 0)
				m.tick(generation)
			}()
		}
	}
}

func (m *Monitor) tick(generation int64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	snapshot, err := m.config.Source(ctx)

	// A response that raced Stop is discarded before any callback.
	if atomic.LoadInt64(&m.generation) != generation {
		if m.config.DebugMode {
			m.logger.Debug("monitor: discarding late response")
		}
		return
	}

	if err != nil {
		// Baseline is kept; transient failures must not fabricate
		// transitions on the next successful tick.
		if m.config.DebugMode {
			m.logger.Warn("monitor: tick failed", "error", err)
		}
		if m.config.OnError != nil {
			m.config.OnError(err)
		}
		return
	}

	if m.last == nil {
		// First successful tick establishes the baseline silently.
		m.last = snapshot
		if m.config.DebugMode {
			m.logger.Debug("monitor: baseline established", "fields", snapshot.Len())
		}
		return
	}

	transitions := diff.Diff(m.last, snapshot)
	for _, t := range transitions {
		if !t.Changed() {
			continue
		}
		if m.config.OnTransition != nil {
			m.config.OnTransition(t)
		}
	}

	// Swap the baseline only after diffing completes, so a failure mid-diff
	// never corrupts it.
	m.last = snapshot
}
