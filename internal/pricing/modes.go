package pricing

import (
	"errors"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// SetPriceMode switches how stored unit prices are read and runs exactly one
// extracting pass over committed and staged lines. Totals are left to
// Aggregate.
//
// Requesting the active mode returns doc unchanged with model.ErrModeUnchanged,
// so the extraction can never run twice without an intervening price edit.
func SetPriceMode(doc model.Document, mode model.PriceMode, rates model.RateResolver) (model.Document, error) {
	if doc.PriceMode == mode {
		return doc, model.ErrModeUnchanged
	}

	out := doc.Clone()
	out.PriceMode = mode
	return repriceDocument(out, rates, true)
}

// SetTaxMode applies mode to committed and staged lines. Base VAT rates are
// kept on each line, so leaving EXEMPT restores them. Applying the active
// mode again yields the same amounts.
func SetTaxMode(doc model.Document, mode model.TaxMode, rates model.RateResolver) (model.Document, error) {
	out := doc.Clone()
	out.TaxMode = mode
	// The effective VAT rate may change, so inclusive prices are re-extracted.
	return repriceDocument(out, rates, true)
}

func repriceDocument(doc model.Document, rates model.RateResolver, extract bool) (model.Document, error) {
	ctx, _ := NewContext(doc, rates)
	ctx.Extract = extract

	lines, lineErr := Reprice(doc.Lines, ctx)
	staged, stagedErr := Reprice(doc.Staged, ctx)
	doc.Lines = lines
	doc.Staged = staged
	return doc, errors.Join(lineErr, stagedErr)
}
