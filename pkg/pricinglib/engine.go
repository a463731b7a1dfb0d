package pricinglib

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/document"
)

// EngineOptions configures an Engine
type EngineOptions struct {
	HomeCurrency    CurrencyCode
	Source          RateSource
	CentralBankURL  string
	FreeMarketURL   string // optional
	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	Logger          zerolog.Logger
}

// DefaultEngineOptions returns default engine options
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		HomeCurrency:    CurrencyTRY,
		Source:          SourceCentralBank,
		CentralBankURL:  "https://www.tcmb.gov.tr/kurlar/today.xml",
		HTTPTimeout:     currency.DefaultTimeout,
		RefreshInterval: 5 * time.Minute,
		Logger:          zerolog.Nop(),
	}
}

// Engine prices documents against live exchange rates
type Engine struct {
	catalog   *currency.Catalog
	refresher *currency.Refresher
	options   EngineOptions
}

// NewEngine creates an engine with the given options. Rates are empty until
// Refresh or Run is called.
func NewEngine(opts EngineOptions) *Engine {
	httpOpts := []currency.ProviderOption{currency.WithTimeout(opts.HTTPTimeout)}
	registry := currency.NewRegistry(currency.NewCentralBankProvider(opts.CentralBankURL, httpOpts...))
	if opts.FreeMarketURL != "" {
		registry.Register(currency.NewFreeMarketProvider(opts.FreeMarketURL, httpOpts...))
	}
	return newEngine(registry, opts)
}

// NewStaticEngine creates an engine serving fixed quotes for opts.Source
func NewStaticEngine(opts EngineOptions, quotes ...RateQuote) *Engine {
	return newEngine(currency.NewRegistry(currency.NewStaticProvider(opts.Source, quotes...)), opts)
}

func newEngine(registry *currency.Registry, opts EngineOptions) *Engine {
	catalog := currency.NewCatalog(opts.HomeCurrency, registry, currency.WithLogger(opts.Logger))
	return &Engine{
		catalog:   catalog,
		refresher: currency.NewRefresher(catalog, opts.Source, opts.RefreshInterval, opts.Logger),
		options:   opts,
	}
}

// Refresh fetches rates from the configured source now
func (e *Engine) Refresh(ctx context.Context) (*RateTable, error) {
	return e.catalog.Refresh(ctx, e.refresher.Source())
}

// Run keeps rates fresh until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	return e.refresher.Run(ctx)
}

// Rates returns the current rate table
func (e *Engine) Rates() *RateTable {
	return e.catalog.Table()
}

// Price prices req against the current rates
func (e *Engine) Price(req Request) (Document, error) {
	return Price(req, e.catalog.Table())
}

// NewSession creates an editable document that follows rate refreshes.
// A currency change on the document requests a refresh.
func (e *Engine) NewSession(lookup ProductLookup) *Session {
	opts := []document.SessionOption{
		document.WithLogger(e.options.Logger),
		document.WithCurrencyChangeHook(func(CurrencyCode) { e.refresher.Trigger() }),
	}
	if lookup != nil {
		opts = append(opts, document.WithLookup(lookup))
	}
	session := document.NewSession(e.options.HomeCurrency, e.catalog.Table(), opts...)
	e.catalog.Subscribe(session.OnRates)
	return session
}
