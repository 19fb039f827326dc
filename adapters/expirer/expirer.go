package expirer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

// DefaultInterval is how often expiries are checked.
const DefaultInterval = time.Second

// Expirer implements ports.Expirer with deadlines persisted in a Store and
// a ticker-driven sweep.
type Expirer struct {
	deadlines *store.Collection[int64]
	interval  time.Duration
	log       log.Logger

	mu      sync.Mutex
	handler ports.ExpiredHandler
	stop    context.CancelFunc
	done    chan struct{}
}

var _ ports.Expirer = (*Expirer)(nil)

// New creates an expirer. A non-positive interval selects DefaultInterval.
func New(st ports.Store, interval time.Duration, logger log.Logger) *Expirer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Expirer{
		deadlines: store.NewCollection[int64](st, "expirer", 0),
		interval:  interval,
		log:       logger.Module("expirer"),
	}
}

func (e *Expirer) Set(ctx context.Context, target string, expiry time.Time) error {
	return e.deadlines.Set(ctx, target, expiry.Unix())
}

func (e *Expirer) Delete(ctx context.Context, target string) error {
	return e.deadlines.Delete(ctx, target)
}

func (e *Expirer) Has(ctx context.Context, target string) (bool, error) {
	return e.deadlines.Has(ctx, target)
}

func (e *Expirer) OnExpired(handler ports.ExpiredHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Start runs the sweep loop until Stop is called.
func (e *Expirer) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := e.Sweep(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
					e.log.Error().Err(err).Msg("expiry sweep failed")
				}
			}
		}
	}()
}

// Stop halts the sweep loop.
func (e *Expirer) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop = nil
	e.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// Sweep removes every target whose deadline is at or before now and calls
// the handler for it.
func (e *Expirer) Sweep(ctx context.Context, now time.Time) error {
	all, err := e.deadlines.GetAll(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()

	for target, deadline := range all {
		if now.Unix() < deadline {
			continue
		}
		if err := e.deadlines.Delete(ctx, target); err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		e.log.Debug().Str("target", target).Msg("expired")
		if handler != nil {
			handler(ctx, target)
		}
	}
	return nil
}
