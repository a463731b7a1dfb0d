package currency_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/model"
)

func quote(code model.CurrencyCode, selling string) model.RateQuote {
	return model.RateQuote{
		CurrencyCode:         code,
		RelationCurrencyCode: model.CurrencyTRY,
		SellingRate:          d(selling),
		BuyingRate:           d(selling),
	}
}

// scriptedProvider answers each call with the next scripted response.
// A response with a gate blocks until the gate is closed.
type scriptedProvider struct {
	source    model.RateSource
	mu        sync.Mutex
	responses []scriptedResponse
	calls     atomic.Int32
}

type scriptedResponse struct {
	quotes  []model.RateQuote
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (p *scriptedProvider) Source() model.RateSource { return p.source }

func (p *scriptedProvider) LatestRates(ctx context.Context) ([]model.RateQuote, error) {
	p.calls.Add(1)
	p.mu.Lock()
	if len(p.responses) == 0 {
		p.mu.Unlock()
		return nil, errors.New("no scripted response")
	}
	r := p.responses[0]
	p.responses = p.responses[1:]
	p.mu.Unlock()

	if r.started != nil {
		close(r.started)
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.quotes, r.err
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)
}

func TestCatalog_HomeResolvesWithoutRefresh(t *testing.T) {
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry())

	rate, err := catalog.Resolve(model.CurrencyTRY)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("1")))

	_, err = catalog.Resolve(model.CurrencyUSD)
	require.ErrorIs(t, err, model.ErrRateUnavailable)
}

func TestCatalog_Refresh(t *testing.T) {
	provider := currency.NewStaticProvider(model.SourceCentralBank,
		quote(model.CurrencyUSD, "30"),
		quote(model.CurrencyEUR, "35"),
	)
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider), currency.WithClock(fixedClock))

	table, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
	require.NoError(t, err)
	assert.Equal(t, model.SourceCentralBank, table.Source)
	assert.Equal(t, fixedClock(), table.FetchedAt)
	assert.Equal(t, uint64(1), table.Sequence)
	assert.Same(t, table, catalog.Table())

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("30")))

	assert.Equal(t, []model.CurrencyCode{model.CurrencyTRY, model.CurrencyEUR, model.CurrencyUSD}, catalog.Table().Currencies())
}

func TestCatalog_RefreshReplacesWholeTable(t *testing.T) {
	provider := &scriptedProvider{
		source: model.SourceCentralBank,
		responses: []scriptedResponse{
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "30"), quote(model.CurrencyEUR, "35")}},
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "31")}},
		},
	}
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
	require.NoError(t, err)
	_, err = catalog.Refresh(context.Background(), model.SourceCentralBank)
	require.NoError(t, err)

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("31")))

	_, err = catalog.Resolve(model.CurrencyEUR)
	assert.ErrorIs(t, err, model.ErrRateUnavailable)
}

func TestCatalog_FailureKeepsLastKnownRates(t *testing.T) {
	provider := &scriptedProvider{
		source: model.SourceFreeMarket,
		responses: []scriptedResponse{
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "30")}},
			{err: model.NewProviderError(model.SourceFreeMarket, "request failed", errors.New("timeout"))},
			{quotes: []model.RateQuote{}},
		},
	}
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	first, err := catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.NoError(t, err)

	_, err = catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.Error(t, err)
	var provErr *model.ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Same(t, first, catalog.Table())

	// An empty response must not wipe the table either
	_, err = catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.Error(t, err)
	assert.Same(t, first, catalog.Table())

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("30")))
}

func TestCatalog_UnknownSource(t *testing.T) {
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry())

	_, err := catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.ErrorIs(t, err, model.ErrUnknownSource)
}

func TestCatalog_SkipsUnusableQuotes(t *testing.T) {
	provider := currency.NewStaticProvider(model.SourceFreeMarket,
		quote(model.CurrencyTRY, "1"),
		quote(model.CurrencyUSD, "30"),
		quote(model.CurrencyGBP, "0"),
		model.RateQuote{
			CurrencyCode:         model.CurrencyEUR,
			RelationCurrencyCode: model.CurrencyUSD,
			SellingRate:          d("1.08"),
		},
	)
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	table, err := catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.NoError(t, err)
	assert.Len(t, table.Rates, 1)
	assert.Contains(t, table.Rates, model.CurrencyUSD)
}

func TestCatalog_StaleResponseDiscarded(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})
	provider := &scriptedProvider{
		source: model.SourceCentralBank,
		responses: []scriptedResponse{
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "29")}, started: started, gate: gate},
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "31")}},
		},
	}

	var notified []uint64
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))
	catalog.Subscribe(func(table *model.RateTable) {
		notified = append(notified, table.Sequence)
	})

	type result struct {
		table *model.RateTable
		err   error
	}
	slow := make(chan result, 1)
	go func() {
		table, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
		slow <- result{table, err}
	}()
	<-started

	fresh, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fresh.Sequence)

	close(gate)
	res := <-slow
	require.ErrorIs(t, res.err, model.ErrStaleRefresh)
	assert.Nil(t, res.table)

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("31")), "older response must not overwrite newer rates")
	assert.Equal(t, []uint64{2}, notified)
}

func TestCatalog_OlderResponseAppliesWhenNewerFails(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})
	provider := &scriptedProvider{
		source: model.SourceCentralBank,
		responses: []scriptedResponse{
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "30")}, started: started, gate: gate},
			{err: errors.New("upstream down")},
		},
	}
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	slow := make(chan error, 1)
	go func() {
		_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
		slow <- err
	}()
	<-started

	_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
	require.Error(t, err)

	_, err = catalog.Refresh(context.Background(), model.SourceFreeMarket)
	require.ErrorIs(t, err, model.ErrUnknownSource)

	close(gate)
	require.NoError(t, <-slow)

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("30")))
	assert.Equal(t, uint64(1), catalog.Table().Sequence)
}

func TestCatalog_OlderResponseDiscardedWhileNewerInFlight(t *testing.T) {
	startedOld, gateOld := make(chan struct{}), make(chan struct{})
	startedNew, gateNew := make(chan struct{}), make(chan struct{})
	provider := &scriptedProvider{
		source: model.SourceCentralBank,
		responses: []scriptedResponse{
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "29")}, started: startedOld, gate: gateOld},
			{quotes: []model.RateQuote{quote(model.CurrencyUSD, "31")}, started: startedNew, gate: gateNew},
		},
	}
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	older := make(chan error, 1)
	go func() {
		_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
		older <- err
	}()
	<-startedOld

	newer := make(chan error, 1)
	go func() {
		_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
		newer <- err
	}()
	<-startedNew

	close(gateOld)
	require.ErrorIs(t, <-older, model.ErrStaleRefresh)
	_, err := catalog.Resolve(model.CurrencyUSD)
	require.ErrorIs(t, err, model.ErrRateUnavailable)

	close(gateNew)
	require.NoError(t, <-newer)

	rate, err := catalog.Resolve(model.CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("31")))
}

func TestCatalog_SubscribersNotifiedOncePerRefresh(t *testing.T) {
	provider := currency.NewStaticProvider(model.SourceCentralBank, quote(model.CurrencyUSD, "30"))
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(provider))

	var first, second int
	catalog.Subscribe(func(*model.RateTable) { first++ })
	catalog.Subscribe(func(*model.RateTable) { second++ })

	for i := 0; i < 3; i++ {
		_, err := catalog.Refresh(context.Background(), model.SourceCentralBank)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, second)
}

func TestCatalog_WithInitialTable(t *testing.T) {
	seed := model.NewRateTable(model.CurrencyTRY, model.SourceCentralBank)
	seed.Rates[model.CurrencyEUR] = model.Rate{Currency: model.CurrencyEUR, Selling: d("35"), Buying: d("34.9")}

	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(), currency.WithInitialTable(seed))

	rate, err := catalog.Resolve(model.CurrencyEUR)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("35")))
	assert.Equal(t, model.CurrencyTRY, catalog.HomeCurrency())
}
