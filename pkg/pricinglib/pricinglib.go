// Package pricinglib provides a public API for pricing invoice documents.
//
// It exposes the core types, a one-shot Price helper and an Engine that keeps
// exchange rates fresh from the configured provider.
//
// Example usage:
//
//	table := pricinglib.NewRateTable(pricinglib.CurrencyTRY)
//	table.Rates[pricinglib.CurrencyUSD] = pricinglib.Rate{Currency: pricinglib.CurrencyUSD, Selling: decimal.NewFromInt(30)}
//
//	doc, err := pricinglib.Price(pricinglib.Request{Currency: "USD", Lines: lines}, table)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.Totals.NetAmount)
package pricinglib

import (
	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/model"
	"github.com/rezonia/invoice-pricer/internal/pricing"
)

// Re-export core types for public API
type (
	Document      = model.Document
	Line          = model.Line
	Totals        = model.Totals
	VATGroup      = model.VATGroup
	Submission    = model.Submission
	CurrencyCode  = model.CurrencyCode
	TaxMode       = model.TaxMode
	PriceMode     = model.PriceMode
	RateSource    = model.RateSource
	RateQuote     = model.RateQuote
	Rate          = model.Rate
	RateTable     = model.RateTable
	RateResolver  = model.RateResolver
	Request       = document.Request
	LineInput     = document.LineInput
	Session       = document.Session
	Product       = document.Product
	ProductLookup = document.ProductLookup
)

// Re-export document actions for Session.Dispatch
type (
	Action         = document.Action
	AddLine        = document.AddLine
	UpdateLine     = document.UpdateLine
	LinePatch      = document.LinePatch
	RemoveLine     = document.RemoveLine
	StageLine      = document.StageLine
	CommitStaged   = document.CommitStaged
	DiscardStaged  = document.DiscardStaged
	SetCurrency    = document.SetCurrency
	SetTaxMode     = document.SetTaxMode
	SetPriceMode   = document.SetPriceMode
	RatesRefreshed = document.RatesRefreshed
)

// Re-export currencies
const (
	CurrencyTRY = model.CurrencyTRY
	CurrencyUSD = model.CurrencyUSD
	CurrencyEUR = model.CurrencyEUR
	CurrencyGBP = model.CurrencyGBP
)

// Re-export modes and sources
const (
	TaxModeNormal         = model.TaxModeNormal
	TaxModeExempt         = model.TaxModeExempt
	PriceModeTaxInclusive = model.PriceModeTaxInclusive
	PriceModeTaxExclusive = model.PriceModeTaxExclusive
	SourceCentralBank     = model.SourceCentralBank
	SourceFreeMarket      = model.SourceFreeMarket
)

// Re-export error types
type (
	ValidationError      = model.ValidationError
	RateUnavailableError = model.RateUnavailableError
	ProviderError        = model.ProviderError
)

// Re-export sentinel errors
var (
	ErrRateUnavailable = model.ErrRateUnavailable
	ErrModeUnchanged   = model.ErrModeUnchanged
	ErrNoLines         = model.ErrNoLines
)

// NewRateTable creates an empty rate table for home currency
func NewRateTable(home CurrencyCode) *RateTable {
	return model.NewRateTable(home, "")
}

// Price builds and prices req in one call. The home currency is taken from
// rates, or the default home currency when rates is nil.
func Price(req Request, rates RateResolver) (Document, error) {
	home := model.DefaultHomeCurrency
	if rates != nil {
		home = rates.HomeCurrency()
	}
	state, err := document.Build(home, req, rates)
	if err != nil {
		return Document{}, err
	}
	return state.Document, nil
}

// Verify checks that doc's derived amounts and totals are consistent
func Verify(doc Document) error {
	return pricing.Verify(doc)
}
