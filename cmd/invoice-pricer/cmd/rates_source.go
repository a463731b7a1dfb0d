package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// newRegistry registers the configured providers. With a rates file, the
// quotes in the file stand in for the active source.
func newRegistry(ratesFile string) (*currency.Registry, error) {
	opts := []currency.ProviderOption{currency.WithTimeout(cfg.HTTPTimeout)}

	registry := currency.NewRegistry(currency.NewCentralBankProvider(cfg.CentralBankURL, opts...))
	if cfg.FreeMarketURL != "" {
		registry.Register(currency.NewFreeMarketProvider(cfg.FreeMarketURL, opts...))
	}

	if ratesFile != "" {
		quotes, err := readQuotes(ratesFile)
		if err != nil {
			return nil, err
		}
		registry.Register(currency.NewStaticProvider(cfg.RateSource, quotes...))
	}
	return registry, nil
}

// readQuotes reads a JSON array in the free market feed shape
func readQuotes(path string) ([]model.RateQuote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	var quotes []model.RateQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("failed to parse rates file %s: %w", path, err)
	}
	for i := range quotes {
		quotes[i].CurrencyCode = model.NormalizeCurrency(string(quotes[i].CurrencyCode))
		quotes[i].RelationCurrencyCode = model.NormalizeCurrency(string(quotes[i].RelationCurrencyCode))
	}
	return quotes, nil
}

// newCatalog builds an empty catalog over the configured providers
func newCatalog(ratesFile string, log zerolog.Logger) (*currency.Catalog, error) {
	registry, err := newRegistry(ratesFile)
	if err != nil {
		return nil, err
	}
	return currency.NewCatalog(cfg.HomeCurrency, registry, currency.WithLogger(log)), nil
}
