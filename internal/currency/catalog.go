// Package currency keeps the latest exchange rates relative to the home
// currency and refreshes them from upstream providers.
package currency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// Catalog is a single-writer cell holding the current rate table.
//
// Refresh results replace the whole table at once. Every refresh takes a
// sequence number when it starts. A response is dropped when a newer table
// was already published or a newer request is still in flight; a failed
// request stops counting as soon as it fails.
type Catalog struct {
	home     model.CurrencyCode
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time

	table atomic.Pointer[model.RateTable]

	mu          sync.Mutex // serializes apply and notification
	subscribers []func(*model.RateTable)

	seqMu   sync.Mutex // guards the fields below; taken after mu
	nextSeq uint64
	applied uint64
	pending map[uint64]struct{}
}

// CatalogOption configures a Catalog
type CatalogOption func(*Catalog)

// WithLogger sets the catalog logger
func WithLogger(log zerolog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.log = log
	}
}

// WithClock sets the time source used to stamp tables
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithInitialTable seeds the catalog, e.g. with rates loaded from a file
func WithInitialTable(table *model.RateTable) CatalogOption {
	return func(c *Catalog) {
		if table != nil {
			c.table.Store(table)
		}
	}
}

// NewCatalog creates a catalog for home currency backed by registry
func NewCatalog(home model.CurrencyCode, registry *Registry, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		home:     home,
		registry: registry,
		log:      zerolog.Nop(),
		now:      time.Now,
		pending:  make(map[uint64]struct{}),
	}
	c.table.Store(model.NewRateTable(home, ""))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HomeCurrency returns the pivot currency
func (c *Catalog) HomeCurrency() model.CurrencyCode {
	return c.home
}

// Resolve returns the current selling rate for code
func (c *Catalog) Resolve(code model.CurrencyCode) (decimal.Decimal, error) {
	return c.table.Load().Resolve(code)
}

// Table returns the current table. Tables are never mutated after publication.
func (c *Catalog) Table() *model.RateTable {
	return c.table.Load()
}

// Subscribe registers fn to be called once after every applied refresh.
// Calls are serialized and happen in application order.
func (c *Catalog) Subscribe(fn func(*model.RateTable)) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}

// Refresh fetches rates from the provider registered for source.
//
// On failure the last known table is kept and the error is returned. If a
// newer refresh was published or is still in flight when this one returns,
// the response is dropped and model.ErrStaleRefresh is returned.
func (c *Catalog) Refresh(ctx context.Context, source model.RateSource) (*model.RateTable, error) {
	seq := c.begin()
	log := c.log.With().Str("source", string(source)).Uint64("sequence", seq).Logger()

	provider, err := c.registry.Get(source)
	if err != nil {
		c.release(seq)
		log.Warn().Err(err).Msg("no provider for rate source")
		return nil, err
	}

	quotes, err := provider.LatestRates(ctx)
	if err != nil {
		c.release(seq)
		log.Warn().Err(err).Msg("rate refresh failed, keeping last known rates")
		return nil, fmt.Errorf("refresh %s rates: %w", source, err)
	}

	table := c.buildTable(source, seq, quotes, log)
	if len(table.Rates) == 0 {
		c.release(seq)
		err := model.NewProviderError(source, "response contains no usable rates", nil)
		log.Warn().Err(err).Msg("rate refresh failed, keeping last known rates")
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if newer, stale := c.settle(seq); stale {
		log.Info().Uint64("newer", newer).Msg("discarding stale rate response")
		return nil, model.ErrStaleRefresh
	}

	c.table.Store(table)
	log.Info().Int("currencies", len(table.Rates)).Msg("rates refreshed")

	for _, fn := range c.subscribers {
		fn(table)
	}
	return table, nil
}

// begin issues the next sequence number and marks it in flight
func (c *Catalog) begin() uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.nextSeq++
	c.pending[c.nextSeq] = struct{}{}
	return c.nextSeq
}

// release forgets a failed request
func (c *Catalog) release(seq uint64) {
	c.seqMu.Lock()
	delete(c.pending, seq)
	c.seqMu.Unlock()
}

// settle completes seq. It reports stale, with the newer sequence, when a
// newer table was published or a newer request is still in flight;
// otherwise seq becomes the applied watermark.
func (c *Catalog) settle(seq uint64) (uint64, bool) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	delete(c.pending, seq)

	newer := c.applied
	for p := range c.pending {
		if p > newer {
			newer = p
		}
	}
	if newer > seq {
		return newer, true
	}
	c.applied = seq
	return 0, false
}

func (c *Catalog) buildTable(source model.RateSource, seq uint64, quotes []model.RateQuote, log zerolog.Logger) *model.RateTable {
	table := model.NewRateTable(c.home, source)
	table.FetchedAt = c.now()
	table.Sequence = seq

	for _, q := range quotes {
		switch {
		case q.CurrencyCode == "" || q.CurrencyCode == c.home:
			continue
		case q.RelationCurrencyCode != "" && q.RelationCurrencyCode != c.home:
			log.Debug().
				Str("currency", string(q.CurrencyCode)).
				Str("relation", string(q.RelationCurrencyCode)).
				Msg("skipping quote not relative to home currency")
			continue
		case !q.SellingRate.IsPositive():
			log.Warn().Str("currency", string(q.CurrencyCode)).Msg("skipping quote without selling rate")
			continue
		}
		table.Rates[q.CurrencyCode] = model.Rate{
			Currency: q.CurrencyCode,
			Selling:  q.SellingRate,
			Buying:   q.BuyingRate,
		}
	}
	return table
}
