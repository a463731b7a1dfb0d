package currency

import (
	"context"
	"fmt"
	"sync"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// Provider fetches the latest quotes from one upstream rate source
type Provider interface {
	// LatestRates returns the current quotes
	LatestRates(ctx context.Context) ([]model.RateQuote, error)

	// Source returns the rate source served by this provider
	Source() model.RateSource
}

// Registry holds one provider per rate source
type Registry struct {
	mu        sync.RWMutex
	providers map[model.RateSource]Provider
}

// NewRegistry creates a registry with the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.RateSource]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any previous one for the same source
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.providers[p.Source()] = p
	r.mu.Unlock()
}

// Get returns the provider for source
func (r *Registry) Get(source model.RateSource) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSource, source)
	}
	return p, nil
}

// Sources returns the registered sources
func (r *Registry) Sources() []model.RateSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]model.RateSource, 0, len(r.providers))
	for _, s := range []model.RateSource{model.SourceCentralBank, model.SourceFreeMarket} {
		if _, ok := r.providers[s]; ok {
			sources = append(sources, s)
		}
	}
	return sources
}

// StaticProvider serves a fixed set of quotes
type StaticProvider struct {
	source model.RateSource
	quotes []model.RateQuote
}

// NewStaticProvider creates a provider that always returns quotes
func NewStaticProvider(source model.RateSource, quotes ...model.RateQuote) *StaticProvider {
	return &StaticProvider{source: source, quotes: quotes}
}

// LatestRates returns a copy of the configured quotes
func (p *StaticProvider) LatestRates(ctx context.Context) ([]model.RateQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.RateQuote(nil), p.quotes...), nil
}

// Source returns the configured source
func (p *StaticProvider) Source() model.RateSource {
	return p.source
}
