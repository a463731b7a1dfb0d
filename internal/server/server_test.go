package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/model"
	"github.com/rezonia/invoice-pricer/internal/server"
)

type testEnv struct {
	srv     *server.Server
	session *document.Session
	catalog *currency.Catalog
}

func newTestServer(t *testing.T, providers ...currency.Provider) *testEnv {
	t.Helper()
	if len(providers) == 0 {
		providers = append(providers, currency.NewStaticProvider(model.SourceCentralBank,
			model.RateQuote{CurrencyCode: model.CurrencyUSD, RelationCurrencyCode: model.CurrencyTRY, SellingRate: decimal.NewFromInt(30), BuyingRate: decimal.NewFromInt(30)},
		))
	}
	catalog := currency.NewCatalog(model.CurrencyTRY, currency.NewRegistry(providers...))
	if _, err := catalog.Refresh(context.Background(), providers[0].Source()); err != nil {
		t.Logf("initial refresh: %v", err)
	}

	lookup := document.NewStaticLookup(document.Product{
		ItemCode:  "SCAN-1",
		UnitPrice: decimal.NewFromInt(100),
		VATRate:   decimal.NewFromInt(10),
	})
	session := document.NewSession(model.CurrencyTRY, catalog.Table(), document.WithLookup(lookup))
	catalog.Subscribe(session.OnRates)

	config := &server.Config{
		Address: ":8080",
		Debug:   true,
	}
	return &testEnv{
		srv:     server.NewServer(config, session, catalog, nil),
		session: session,
		catalog: catalog,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeDocument(t *testing.T, w *httptest.ResponseRecorder) server.DocumentResponse {
	t.Helper()
	var resp server.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestRatesEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/rates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.RatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.CurrencyTRY, resp.Home)
	assert.Equal(t, model.SourceCentralBank, resp.Source)
	require.Len(t, resp.Rates, 1)
	assert.Equal(t, model.CurrencyUSD, resp.Rates[0].Currency)
	assertAmount(t, "30", resp.Rates[0].Selling)
}

func TestRefreshRatesEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/rates/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp server.RatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(2), resp.Sequence)
}

func TestRefreshRatesEndpoint_UnknownSource(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/rates/refresh", server.RefreshRequest{Source: "FREE_MARKET"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/rates/refresh", server.RefreshRequest{Source: "BLACK_MARKET"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshRatesEndpoint_ProviderFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	env := newTestServer(t, currency.NewFreeMarketProvider(upstream.URL))

	w := env.do(t, http.MethodPost, "/api/v1/rates/refresh", server.RefreshRequest{Source: "FREE_MARKET"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPriceEndpoint(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name      string
		priceMode model.PriceMode
		total     string
		vat       string
		net       string
	}{
		{"exclusive", model.PriceModeTaxExclusive, "1000", "180", "1180"},
		{"inclusive", model.PriceModeTaxInclusive, "847.46", "152.54", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/price", document.Request{
				PriceMode: tt.priceMode,
				Lines: []document.LineInput{
					{ItemCode: "A", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100), VATRate: decimal.NewFromInt(18)},
				},
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			totals := decodeDocument(t, w).Document.Totals
			assertAmount(t, tt.total, totals.TotalAmount)
			assertAmount(t, tt.vat, totals.VATAmount)
			assertAmount(t, tt.net, totals.NetAmount)
		})
	}
}

func TestPriceEndpoint_ForeignCurrency(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/price", document.Request{
		Currency: model.CurrencyUSD,
		Lines: []document.LineInput{
			{ItemCode: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), VATRate: decimal.Zero},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeDocument(t, w)
	require.True(t, resp.Document.Totals.HomeCurrencyEquivalentTotal.Valid)
	assertAmount(t, "3000", resp.Document.Totals.HomeCurrencyEquivalentTotal.Decimal)
}

func TestPriceEndpoint_Errors(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/price", document.Request{
		Lines: []document.LineInput{
			{ItemCode: "A", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "quantity", errResp.Field)

	w = env.do(t, http.MethodPost, "/api/v1/price", document.Request{Currency: model.CurrencyEUR})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/price", document.Request{TaxMode: "ZERO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/price", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentActions(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type: server.ActionAddLine,
		Line: &document.LineInput{ID: "1", ItemCode: "A", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100), VATRate: decimal.NewFromInt(18)},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeDocument(t, w)
	assertAmount(t, "1180", resp.Document.Totals.NetAmount)
	assert.True(t, resp.CanSubmit)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type: server.ActionAddLine,
		Line: &document.LineInput{ID: "1", ItemCode: "B", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5)},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, env.session.Document().Lines, 1)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type:    server.ActionSetTaxMode,
		TaxMode: "EXEMPT",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assertAmount(t, "1000", decodeDocument(t, w).Document.Totals.NetAmount)

	negative := decimal.NewFromInt(-3)
	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type:   server.ActionUpdateLine,
		LineID: "1",
		Patch:  &server.LinePatchInput{Quantity: &negative},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type:      server.ActionSetPriceMode,
		PriceMode: "TAX_EXCLUSIVE",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type:     server.ActionSetCurrency,
		Currency: "EUR",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type:   server.ActionRemoveLine,
		LineID: "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{Type: "explode"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Rejected actions left the document untouched
	w = env.do(t, http.MethodGet, "/api/v1/document", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeDocument(t, w).Document
	assert.Equal(t, model.CurrencyTRY, doc.Currency)
	assertAmount(t, "10", doc.Lines[0].Quantity)
	assertAmount(t, "1000", doc.Totals.NetAmount)
}

func TestDocumentStageAndCommit(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{Type: server.ActionSetTaxMode, TaxMode: "EXEMPT"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/stage", server.StageRequest{ItemCode: "SCAN-1", Quantity: decimal.NewFromInt(1)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeDocument(t, w).Document.Staged, 1)

	w = env.do(t, http.MethodPost, "/api/v1/document/stage", server.StageRequest{ItemCode: "NOPE", Quantity: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{Type: server.ActionCommitStaged})
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeDocument(t, w).Document
	require.Len(t, doc.Lines, 1)
	assertAmount(t, "0", doc.Lines[0].VATAmount)
	assertAmount(t, "10", doc.Lines[0].VATRate)
}

func TestDocumentSubmit(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/document/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type: server.ActionAddLine,
		Line: &document.LineInput{ItemCode: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), VATRate: decimal.NewFromInt(18)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/document/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sub model.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, model.CurrencyTRY, sub.Currency)
	assertAmount(t, "118", sub.Totals.NetAmount)
}

func TestDocumentFollowsCatalogRefresh(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{Type: server.ActionSetCurrency, Currency: "usd"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, "/api/v1/document/actions", server.ActionRequest{
		Type: server.ActionAddLine,
		Line: &document.LineInput{ItemCode: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), VATRate: decimal.Zero},
	})
	require.Equal(t, http.StatusOK, w.Code)

	table := model.NewRateTable(model.CurrencyTRY, model.SourceCentralBank)
	table.Rates[model.CurrencyUSD] = model.Rate{Currency: model.CurrencyUSD, Selling: decimal.NewFromInt(40)}
	env.session.OnRates(table)

	doc := env.session.Document()
	assertAmount(t, "400", doc.Totals.HomeCurrencyEquivalentTotal.Decimal)
}
