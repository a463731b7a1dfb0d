// Package pricing derives invoice line amounts and document totals.
//
// Every function in this package is synchronous and side-effect free: inputs
// are never mutated, new lines and slices are returned instead.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-pricer/internal/decimal"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// Context carries the document-level inputs of a line computation
type Context struct {
	PriceMode model.PriceMode
	TaxMode   model.TaxMode
	Currency  model.CurrencyCode
	Home      model.CurrencyCode

	// Rate is the resolved rate of Currency; ignored when Currency is Home
	Rate decimal.NullDecimal

	// Extract marks a price transition edge: under TAX_INCLUSIVE the net unit
	// price is re-extracted from UnitPrice only when Extract is set.
	Extract bool

	rateErr error
}

// NewContext resolves the document currency rate and returns the context.
// A missing rate yields a usable context (without Rate) plus the
// *model.RateUnavailableError.
func NewContext(doc model.Document, rates model.RateResolver) (Context, error) {
	ctx := Context{
		PriceMode: doc.PriceMode,
		TaxMode:   doc.TaxMode,
		Currency:  doc.Currency,
		Home:      doc.Home,
	}
	if doc.Currency == doc.Home {
		ctx.Rate = decimal.NewNullDecimal(decimal.NewFromInt(1))
		return ctx, nil
	}
	if rates == nil {
		ctx.rateErr = model.NewRateUnavailableError(doc.Currency, "", errors.New("no rate table loaded"))
		return ctx, ctx.rateErr
	}
	rate, err := rates.Resolve(doc.Currency)
	if err != nil {
		ctx.rateErr = err
		return ctx, err
	}
	ctx.Rate = decimal.NewNullDecimal(rate)
	return ctx, nil
}

// WithExtract returns a copy of ctx marked as a price transition edge
func (c Context) WithExtract() Context {
	c.Extract = true
	return c
}

// Validate checks a line's base fields
func Validate(line model.Line) error {
	switch {
	case !money.IsNonNegative(line.Quantity):
		return model.NewValidationError(line.ID, "quantity", line.Quantity.String(), "min=0", "must not be negative")
	case !money.IsNonNegative(line.UnitPrice):
		return model.NewValidationError(line.ID, "unit_price", line.UnitPrice.String(), "min=0", "must not be negative")
	case !money.InPercentRange(line.VATRate):
		return model.NewValidationError(line.ID, "vat_rate", line.VATRate.String(), "range=0..100", "must be between 0 and 100")
	case !money.InPercentRange(line.DiscountRate):
		return model.NewValidationError(line.ID, "discount_rate", line.DiscountRate.String(), "range=0..100", "must be between 0 and 100")
	}
	return nil
}

// Compute derives every cached amount of line under ctx.
//
// On a validation failure the input line is returned untouched together with
// a *model.ValidationError. When the document is foreign and ctx has no rate,
// the amounts are derived but HomeCurrencyEquivalent and AppliedExchangeRate
// stay null and a *model.RateUnavailableError is returned.
func Compute(line model.Line, ctx Context) (model.Line, error) {
	if err := Validate(line); err != nil {
		return line, err
	}

	out := line

	out.EffectiveVATRate = line.VATRate
	if ctx.TaxMode == model.TaxModeExempt {
		out.EffectiveVATRate = money.Zero
	}

	switch {
	case ctx.PriceMode != model.PriceModeTaxInclusive:
		out.NetUnitPrice = line.UnitPrice
	case ctx.Extract || !line.Priced:
		out.NetUnitPrice = money.RoundPrice(money.StripPercent(line.UnitPrice, out.EffectiveVATRate))
	default:
		out.NetUnitPrice = line.NetUnitPrice
	}

	out.TotalAmount = money.Round2(line.Quantity.Mul(out.NetUnitPrice))
	out.DiscountAmount = money.Percent(out.TotalAmount, line.DiscountRate)
	out.SubtotalAmount = money.Round2(out.TotalAmount.Sub(out.DiscountAmount))
	out.VATAmount = money.Percent(out.SubtotalAmount, out.EffectiveVATRate)
	out.NetAmount = money.Round2(out.SubtotalAmount.Add(out.VATAmount))

	out.Currency = ctx.Currency
	out.Priced = true

	switch {
	case ctx.Currency == ctx.Home:
		out.HomeCurrencyEquivalent = decimal.NewNullDecimal(out.NetAmount)
		out.AppliedExchangeRate = decimal.NewNullDecimal(decimal.NewFromInt(1))
	case ctx.Rate.Valid:
		out.HomeCurrencyEquivalent = decimal.NewNullDecimal(money.Mul(out.NetAmount, ctx.Rate.Decimal))
		out.AppliedExchangeRate = ctx.Rate
	default:
		out.HomeCurrencyEquivalent = decimal.NullDecimal{}
		out.AppliedExchangeRate = decimal.NullDecimal{}
		if ctx.rateErr != nil {
			return out, ctx.rateErr
		}
		return out, model.NewRateUnavailableError(ctx.Currency, "", nil)
	}

	return out, nil
}

// Reprice runs Compute over lines and returns a new slice.
// Lines failing validation keep their previous values and their errors are
// joined; rate unavailability is reported by NewContext, not here.
func Reprice(lines []model.Line, ctx Context) ([]model.Line, error) {
	if lines == nil {
		return nil, nil
	}
	out := make([]model.Line, len(lines))
	var errs []error
	for i, line := range lines {
		priced, err := Compute(line, ctx)
		if err != nil && !errors.Is(err, model.ErrRateUnavailable) {
			errs = append(errs, err)
		}
		out[i] = priced
	}
	return out, errors.Join(errs...)
}
