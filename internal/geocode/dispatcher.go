package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
)

// Dispatcher serialises asynchronous reverse-geocode lookups against the
// gesture stream that issued them. Each lookup is tagged with the gesture
// sequence current at issue time; Advance bumps the sequence and cancels the
// outstanding request, so a response that lands after a newer gesture is
// dropped on arrival (last-gesture-wins) instead of overwriting newer state.
//
// Provider failures degrade to an empty address so the caller's form can
// still be filled in manually.
type Dispatcher struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup

	provider Provider
	timeout  time.Duration
	log      logging.Logger
}

// DispatcherOption customises Dispatcher construction.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger attaches a structured logger.
func WithDispatcherLogger(log logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// WithLookupTimeout bounds each provider call.
func WithLookupTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher wires a dispatcher to a provider.
func NewDispatcher(provider Provider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		timeout:  5 * time.Second,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Advance marks the start of a new gesture: every lookup issued before this
// call becomes stale, and the outstanding request (if any) is cancelled.
func (d *Dispatcher) Advance() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// ReverseGeocode resolves p asynchronously and hands the address to apply,
// unless a newer gesture arrives first. apply runs under the dispatcher
// lock, so it is ordered against Advance and must not call back into the
// dispatcher.
func (d *Dispatcher) ReverseGeocode(p model.Point, apply func(model.Address)) {
	d.mu.Lock()
	issued := d.seq
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	d.cancel = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer cancel()

		addr, err := d.provider.ReverseGeocode(ctx, p)
		if err != nil {
			// Empty-address fallback; the form stays editable.
			addr = model.Address{Position: p}
		}

		// The staleness check and the apply are one atomic step: a gesture
		// landing between them would have already cleared or replaced the
		// state this result belongs to.
		d.mu.Lock()
		if d.seq != issued {
			d.mu.Unlock()
			d.log.Debug(context.Background(), "dropping stale geocode response",
				logging.Float64("lat", p.Lat),
				logging.Float64("lon", p.Lon),
			)
			return
		}
		if err != nil {
			d.log.Warn(context.Background(), "geocode failed, applying empty address", logging.Err(err))
		}
		apply(addr)
		d.mu.Unlock()
	}()
}

// Wait blocks until every in-flight lookup has finished (applied or
// dropped). Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
