package currency

import (
	"context"
	"encoding/json"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// FreeMarketProvider reads a JSON array of quotes:
//
//	[{"currencyCode":"USD","relationCurrencyCode":"TRY","sellingRate":"34.2","buyingRate":"34.1"}]
type FreeMarketProvider struct {
	url string
	cfg *httpConfig
}

// NewFreeMarketProvider creates a provider for the feed at url
func NewFreeMarketProvider(url string, opts ...ProviderOption) *FreeMarketProvider {
	return &FreeMarketProvider{
		url: url,
		cfg: newHTTPConfig(opts),
	}
}

// Source returns model.SourceFreeMarket
func (p *FreeMarketProvider) Source() model.RateSource {
	return model.SourceFreeMarket
}

// LatestRates fetches and decodes the feed
func (p *FreeMarketProvider) LatestRates(ctx context.Context) ([]model.RateQuote, error) {
	body, err := fetch(ctx, p.cfg.client, model.SourceFreeMarket, p.url, "application/json")
	if err != nil {
		return nil, err
	}

	var quotes []model.RateQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, model.NewProviderError(model.SourceFreeMarket, "JSON decoding failed", err)
	}
	for i := range quotes {
		quotes[i].CurrencyCode = model.NormalizeCurrency(string(quotes[i].CurrencyCode))
		quotes[i].RelationCurrencyCode = model.NormalizeCurrency(string(quotes[i].RelationCurrencyCode))
	}
	return quotes, nil
}
