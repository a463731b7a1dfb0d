package currency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// DefaultRefreshInterval is used when no positive interval is given
const DefaultRefreshInterval = 5 * time.Minute

// Refresher drives Catalog.Refresh: once on start, on every tick, and
// whenever Trigger or SetSource is called. Refreshes run concurrently; the
// catalog's sequence guard keeps only the newest response.
type Refresher struct {
	catalog  *Catalog
	interval time.Duration
	trigger  chan struct{}
	log      zerolog.Logger

	mu     sync.RWMutex
	source model.RateSource

	wg sync.WaitGroup
}

// NewRefresher creates a refresher for catalog
func NewRefresher(catalog *Catalog, source model.RateSource, interval time.Duration, log zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		catalog:  catalog,
		interval: interval,
		source:   source,
		trigger:  make(chan struct{}, 1),
		log:      log,
	}
}

// Source returns the active rate source
func (r *Refresher) Source() model.RateSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

// SetSource switches the rate source and requests a refresh
func (r *Refresher) SetSource(source model.RateSource) {
	r.mu.Lock()
	changed := r.source != source
	r.source = source
	r.mu.Unlock()

	if changed {
		r.Trigger()
	}
}

// Trigger requests an immediate refresh without blocking.
// Requests arriving while one is pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is done and waits for in-flight refreshes
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			r.spawn(ctx)
		case <-r.trigger:
			r.spawn(ctx)
		}
	}
}

func (r *Refresher) spawn(ctx context.Context) {
	source := r.Source()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.catalog.Refresh(ctx, source); err != nil && !errors.Is(err, model.ErrStaleRefresh) {
			r.log.Debug().Err(err).Str("source", string(source)).Msg("scheduled refresh did not apply")
		}
	}()
}
