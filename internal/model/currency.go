package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyCode is an ISO 4217 currency identifier
type CurrencyCode string

// Common currencies
const (
	CurrencyTRY CurrencyCode = "TRY"
	CurrencyUSD CurrencyCode = "USD"
	CurrencyEUR CurrencyCode = "EUR"
	CurrencyGBP CurrencyCode = "GBP"
)

// DefaultHomeCurrency is the reporting currency used as conversion pivot
const DefaultHomeCurrency = CurrencyTRY

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) CurrencyCode {
	return CurrencyCode(strings.ToUpper(strings.TrimSpace(code)))
}

// RateSource selects the upstream rate provider
type RateSource string

const (
	SourceCentralBank RateSource = "CENTRAL_BANK"
	SourceFreeMarket  RateSource = "FREE_MARKET"
)

// ParseRateSource parses a rate source name
func ParseRateSource(s string) (RateSource, error) {
	switch RateSource(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceCentralBank:
		return SourceCentralBank, nil
	case SourceFreeMarket:
		return SourceFreeMarket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// RateQuote is one record returned by a rate provider
type RateQuote struct {
	CurrencyCode         CurrencyCode    `json:"currencyCode"`
	RelationCurrencyCode CurrencyCode    `json:"relationCurrencyCode"`
	SellingRate          decimal.Decimal `json:"sellingRate"`
	BuyingRate           decimal.Decimal `json:"buyingRate"`
}

// Rate holds home-currency units per one unit of Currency
type Rate struct {
	Currency CurrencyCode    `json:"currency"`
	Selling  decimal.Decimal `json:"selling"`
	Buying   decimal.Decimal `json:"buying"`
}

// RateResolver resolves exchange rates relative to a home currency
type RateResolver interface {
	HomeCurrency() CurrencyCode
	Resolve(code CurrencyCode) (decimal.Decimal, error)
}

// RateTable is an immutable snapshot of the latest known rates.
// Tables are replaced as a whole, never patched.
type RateTable struct {
	Source    RateSource            `json:"source"`
	Home      CurrencyCode          `json:"home"`
	Rates     map[CurrencyCode]Rate `json:"rates"`
	FetchedAt time.Time             `json:"fetched_at"`
	Sequence  uint64                `json:"sequence"`
}

// NewRateTable creates an empty table for home currency
func NewRateTable(home CurrencyCode, source RateSource) *RateTable {
	return &RateTable{
		Source: source,
		Home:   home,
		Rates:  make(map[CurrencyCode]Rate),
	}
}

// HomeCurrency returns the table's pivot currency
func (t *RateTable) HomeCurrency() CurrencyCode {
	return t.Home
}

// Resolve returns the selling rate for code.
// Home always resolves to 1; unknown or non-positive rates are unavailable.
func (t *RateTable) Resolve(code CurrencyCode) (decimal.Decimal, error) {
	if code == t.Home {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := t.Rates[code]
	if !ok {
		return decimal.Zero, NewRateUnavailableError(code, t.Source, nil)
	}
	if !rate.Selling.IsPositive() {
		return decimal.Zero, NewRateUnavailableError(code, t.Source, fmt.Errorf("non-positive selling rate %s", rate.Selling))
	}
	return rate.Selling, nil
}

// Currencies returns the known currency codes, home first, rest sorted
func (t *RateTable) Currencies() []CurrencyCode {
	codes := make([]CurrencyCode, 0, len(t.Rates))
	for code := range t.Rates {
		if code != t.Home {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return append([]CurrencyCode{t.Home}, codes...)
}
