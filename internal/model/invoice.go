package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxMode is the document-wide VAT override
type TaxMode string

const (
	TaxModeNormal TaxMode = "NORMAL"
	TaxModeExempt TaxMode = "EXEMPT"
)

// ParseTaxMode parses a tax mode name
func ParseTaxMode(s string) (TaxMode, error) {
	switch TaxMode(strings.ToUpper(strings.TrimSpace(s))) {
	case TaxModeNormal, "":
		return TaxModeNormal, nil
	case TaxModeExempt:
		return TaxModeExempt, nil
	}
	return "", fmt.Errorf("%w: tax mode %q", ErrUnknownMode, s)
}

// PriceMode tells whether stored unit prices include VAT
type PriceMode string

const (
	PriceModeTaxInclusive PriceMode = "TAX_INCLUSIVE"
	PriceModeTaxExclusive PriceMode = "TAX_EXCLUSIVE"
)

// ParsePriceMode parses a price mode name
func ParsePriceMode(s string) (PriceMode, error) {
	switch PriceMode(strings.ToUpper(strings.TrimSpace(s))) {
	case PriceModeTaxExclusive, "":
		return PriceModeTaxExclusive, nil
	case PriceModeTaxInclusive:
		return PriceModeTaxInclusive, nil
	}
	return "", fmt.Errorf("%w: price mode %q", ErrUnknownMode, s)
}

// Line is one invoice line.
//
// Quantity, UnitPrice, VATRate, DiscountRate and Currency are base fields.
// Everything below them is a cache written only by the line calculator and
// is meaningless until Priced is true.
type Line struct {
	ID           string          `json:"id"`
	ItemCode     string          `json:"item_code"`
	Description  string          `json:"description,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Currency     CurrencyCode    `json:"currency"`

	EffectiveVATRate       decimal.Decimal     `json:"effective_vat_rate"`
	NetUnitPrice           decimal.Decimal     `json:"net_unit_price"`
	TotalAmount            decimal.Decimal     `json:"total_amount"`
	DiscountAmount         decimal.Decimal     `json:"discount_amount"`
	SubtotalAmount         decimal.Decimal     `json:"subtotal_amount"`
	VATAmount              decimal.Decimal     `json:"vat_amount"`
	NetAmount              decimal.Decimal     `json:"net_amount"`
	HomeCurrencyEquivalent decimal.NullDecimal `json:"home_currency_equivalent"`
	AppliedExchangeRate    decimal.NullDecimal `json:"applied_exchange_rate"`
	Priced                 bool                `json:"priced"`
}

// VATGroup is the taxable base and VAT collected at one effective rate
type VATGroup struct {
	Rate decimal.Decimal `json:"rate"`
	Base decimal.Decimal `json:"base"`
	VAT  decimal.Decimal `json:"vat"`
}

// Totals aggregates the derived fields of every committed line
type Totals struct {
	TotalAmount                 decimal.Decimal     `json:"total_amount"`
	DiscountAmount              decimal.Decimal     `json:"discount_amount"`
	SubtotalAmount              decimal.Decimal     `json:"subtotal_amount"`
	VATAmount                   decimal.Decimal     `json:"vat_amount"`
	NetAmount                   decimal.Decimal     `json:"net_amount"`
	HomeCurrencyEquivalentTotal decimal.NullDecimal `json:"home_currency_equivalent_total"`
	VATBreakdown                []VATGroup          `json:"vat_breakdown,omitempty"`
	LineCount                   int                 `json:"line_count"`
}

// Document is a single invoice being edited
type Document struct {
	Home      CurrencyCode          `json:"home"`
	Currency  CurrencyCode          `json:"currency"`
	TaxMode   TaxMode               `json:"tax_mode"`
	PriceMode PriceMode             `json:"price_mode"`
	Lines     []Line                `json:"lines"`
	Staged    []Line                `json:"staged,omitempty"`
	Totals    Totals                `json:"totals"`
	RateIssue *RateUnavailableError `json:"-"`
}

// NewDocument creates an empty document priced in home currency
func NewDocument(home CurrencyCode) Document {
	return Document{
		Home:      home,
		Currency:  home,
		TaxMode:   TaxModeNormal,
		PriceMode: PriceModeTaxExclusive,
		Lines:     []Line{},
	}
}

// Clone returns a copy that shares no slices with d
func (d Document) Clone() Document {
	out := d
	out.Lines = cloneLines(d.Lines)
	out.Staged = cloneLines(d.Staged)
	if d.Totals.VATBreakdown != nil {
		out.Totals.VATBreakdown = append([]VATGroup{}, d.Totals.VATBreakdown...)
	}
	return out
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// FindLine returns the index of the committed line with id, or -1
func (d Document) FindLine(id string) int {
	for i := range d.Lines {
		if d.Lines[i].ID == id {
			return i
		}
	}
	return -1
}

// IsForeign reports whether the document is priced outside home currency
func (d Document) IsForeign() bool {
	return d.Currency != d.Home
}

// Submission is the plain payload handed to persistence
type Submission struct {
	Currency     CurrencyCode        `json:"currency"`
	TaxMode      TaxMode             `json:"tax_mode"`
	PriceMode    PriceMode           `json:"price_mode"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
	Lines        []Line              `json:"lines"`
	Totals       Totals              `json:"totals"`
}
