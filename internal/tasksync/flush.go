package tasksync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultFlushInterval is the debounce window between the first mutation
// and the export it schedules.
const DefaultFlushInterval = 5 * time.Second

// FlushManager owns the dirty flag and debounce timer for automatic
// exports. All state lives in a single goroutine; callers communicate over
// channels, so there is no lock ordering to reason about.
//
// A mutation marks the manager dirty and starts the debounce timer if it
// is not already running. Further mutations inside the window coalesce
// into one export. A failed export keeps the dirty flag set and re-arms
// the timer, so the next window retries.
type FlushManager struct {
	engine   *Engine
	interval time.Duration
	log      *slog.Logger

	markDirtyCh chan struct{}
	flushNowCh  chan chan error
	shutdownCh  chan struct{}
	doneCh      chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewFlushManager creates a manager around the engine. interval <= 0 uses
// DefaultFlushInterval.
func NewFlushManager(engine *Engine, interval time.Duration, log *slog.Logger) *FlushManager {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &FlushManager{
		engine:      engine,
		interval:    interval,
		log:         log,
		markDirtyCh: make(chan struct{}, 1),
		flushNowCh:  make(chan chan error),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the manager goroutine. Safe to call once.
func (fm *FlushManager) Start(ctx context.Context) {
	fm.startOnce.Do(func() {
		go fm.run(ctx)
	})
}

// MarkDirty schedules an export after the debounce window. Non-blocking;
// repeated calls inside a window coalesce.
func (fm *FlushManager) MarkDirty() {
	select {
	case fm.markDirtyCh <- struct{}{}:
	default:
	}
}

// FlushNow forces an immediate export regardless of the dirty flag and
// returns its error.
func (fm *FlushManager) FlushNow() error {
	reply := make(chan error, 1)
	select {
	case fm.flushNowCh <- reply:
		return <-reply
	case <-fm.doneCh:
		return fm.engine.Export(context.Background())
	}
}

// Stop flushes pending changes and terminates the goroutine. Safe to call
// more than once; only the first call does work.
func (fm *FlushManager) Stop() {
	fm.stopOnce.Do(func() {
		close(fm.shutdownCh)
		<-fm.doneCh
	})
}

func (fm *FlushManager) run(ctx context.Context) {
	defer close(fm.doneCh)

	var (
		dirty bool
		timer *time.Timer
	)
	// Use a stopped timer so the select below can always include its
	// channel.
	timer = time.NewTimer(fm.interval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	arm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(fm.interval)
	}

	flush := func() {
		if err := fm.engine.Export(ctx); err != nil {
			fm.log.Error("debounced export failed, will retry", "error", err)
			dirty = true
			arm()
			return
		}
		dirty = false
	}

	for {
		select {
		case <-fm.markDirtyCh:
			if !dirty {
				dirty = true
				arm()
			}

		case <-timer.C:
			if dirty {
				flush()
			}

		case reply := <-fm.flushNowCh:
			err := fm.engine.Export(ctx)
			if err == nil {
				dirty = false
			}
			reply <- err

		case <-fm.shutdownCh:
			if dirty {
				if err := fm.engine.Export(ctx); err != nil {
					fm.log.Error("final export on shutdown failed", "error", err)
				}
			}
			return

		case <-ctx.Done():
			return
		}
	}
}
