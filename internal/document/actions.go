package document

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
	"github.com/rezonia/invoice-pricer/internal/pricing"
)

// Action is one typed mutation of the document
type Action interface {
	// Name identifies the action in logs and errors
	Name() string

	apply(State) (State, error)
}

// AddLine commits a new line. A line priced in another currency is
// converted into the document currency first.
type AddLine struct {
	Line model.Line
}

func (AddLine) Name() string { return "add_line" }

func (a AddLine) apply(s State) (State, error) {
	line, err := prepareLine(s, a.Line)
	if err != nil {
		return s, err
	}
	doc := s.Document.Clone()
	doc.Lines = append(doc.Lines, line)
	s.Document = doc
	return s, nil
}

// StageLine holds a candidate line outside the totals until CommitStaged.
// Staged lines follow every mode and currency change of the document.
type StageLine struct {
	Line model.Line
}

func (StageLine) Name() string { return "stage_line" }

func (a StageLine) apply(s State) (State, error) {
	line, err := prepareLine(s, a.Line)
	if err != nil {
		return s, err
	}
	doc := s.Document.Clone()
	doc.Staged = append(doc.Staged, line)
	s.Document = doc
	return s, nil
}

// CommitStaged moves every staged line into the document
type CommitStaged struct{}

func (CommitStaged) Name() string { return "commit_staged" }

func (CommitStaged) apply(s State) (State, error) {
	if len(s.Document.Staged) == 0 {
		return s, nil
	}
	ctx, _ := pricing.NewContext(s.Document, s.Rates)
	staged, err := pricing.Reprice(s.Document.Staged, ctx)
	if err != nil {
		return s, err
	}

	doc := s.Document.Clone()
	doc.Lines = append(doc.Lines, staged...)
	doc.Staged = nil
	s.Document = doc
	return s, nil
}

// DiscardStaged drops every staged line
type DiscardStaged struct{}

func (DiscardStaged) Name() string { return "discard_staged" }

func (DiscardStaged) apply(s State) (State, error) {
	doc := s.Document.Clone()
	doc.Staged = nil
	s.Document = doc
	return s, nil
}

// LinePatch carries the base fields to change; nil fields are kept
type LinePatch struct {
	ItemCode     *string
	Description  *string
	Quantity     *decimal.Decimal
	UnitPrice    *decimal.Decimal
	VATRate      *decimal.Decimal
	DiscountRate *decimal.Decimal
}

// UpdateLine edits the base fields of a committed line.
// An invalid edit is rejected and the line keeps its previous values.
type UpdateLine struct {
	ID    string
	Patch LinePatch
}

func (UpdateLine) Name() string { return "update_line" }

func (a UpdateLine) apply(s State) (State, error) {
	idx := s.Document.FindLine(a.ID)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", model.ErrLineNotFound, a.ID)
	}

	line := s.Document.Lines[idx]
	p := a.Patch
	if p.ItemCode != nil {
		line.ItemCode = *p.ItemCode
	}
	if p.Description != nil {
		line.Description = *p.Description
	}
	if p.Quantity != nil {
		line.Quantity = *p.Quantity
	}
	if p.DiscountRate != nil {
		line.DiscountRate = *p.DiscountRate
	}

	ctx, _ := pricing.NewContext(s.Document, s.Rates)
	// A new gross price or VAT rate is a price edge for inclusive documents
	if p.UnitPrice != nil {
		line.UnitPrice = *p.UnitPrice
		ctx = ctx.WithExtract()
	}
	if p.VATRate != nil {
		line.VATRate = *p.VATRate
		ctx = ctx.WithExtract()
	}

	priced, err := pricing.Compute(line, ctx)
	if err != nil && !errors.Is(err, model.ErrRateUnavailable) {
		return s, err
	}

	doc := s.Document.Clone()
	doc.Lines[idx] = priced
	s.Document = doc
	return s, nil
}

// RemoveLine deletes a committed line
type RemoveLine struct {
	ID string
}

func (RemoveLine) Name() string { return "remove_line" }

func (a RemoveLine) apply(s State) (State, error) {
	idx := s.Document.FindLine(a.ID)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", model.ErrLineNotFound, a.ID)
	}

	doc := s.Document.Clone()
	doc.Lines = append(doc.Lines[:idx], doc.Lines[idx+1:]...)
	s.Document = doc
	return s, nil
}

// SetCurrency moves the document and every line to Currency.
// The change is rejected as a whole when any needed rate is unavailable.
type SetCurrency struct {
	Currency model.CurrencyCode
}

func (SetCurrency) Name() string { return "set_currency" }

func (a SetCurrency) apply(s State) (State, error) {
	from := s.Document.Currency
	if a.Currency == "" || a.Currency == from {
		return s, nil
	}

	doc := s.Document.Clone()
	doc.Currency = a.Currency
	ctx, err := pricing.NewContext(doc, s.Rates)
	if err != nil {
		return s, err
	}

	lines, err := pricing.Retarget(doc.Lines, from, s.Rates, ctx)
	if err != nil {
		return s, err
	}
	staged, err := pricing.Retarget(doc.Staged, from, s.Rates, ctx)
	if err != nil {
		return s, err
	}
	doc.Lines = lines
	doc.Staged = staged
	s.Document = doc
	return s, nil
}

// SetTaxMode switches between NORMAL and EXEMPT
type SetTaxMode struct {
	Mode model.TaxMode
}

func (SetTaxMode) Name() string { return "set_tax_mode" }

func (a SetTaxMode) apply(s State) (State, error) {
	doc, err := pricing.SetTaxMode(s.Document, a.Mode, s.Rates)
	if err != nil {
		return s, err
	}
	s.Document = doc
	return s, nil
}

// SetPriceMode switches whether stored unit prices include VAT.
// Requesting the active mode fails with model.ErrModeUnchanged.
type SetPriceMode struct {
	Mode model.PriceMode
}

func (SetPriceMode) Name() string { return "set_price_mode" }

func (a SetPriceMode) apply(s State) (State, error) {
	doc, err := pricing.SetPriceMode(s.Document, a.Mode, s.Rates)
	if err != nil {
		return s, err
	}
	s.Document = doc
	return s, nil
}

// RatesRefreshed installs a new rate table and reprices home equivalents.
//
// If the document currency has no rate in Table, the lines keep their
// amounts but lose their home equivalents, and the document carries the
// rate issue until a later table resolves it.
type RatesRefreshed struct {
	Table *model.RateTable
}

func (RatesRefreshed) Name() string { return "rates_refreshed" }

func (a RatesRefreshed) apply(s State) (State, error) {
	if a.Table == nil {
		return s, errors.New("nil rate table")
	}
	s.Rates = a.Table

	// Without a rate for the document currency the amounts stay and the
	// home equivalents drop to null; finalize records the rate issue.
	ctx, _ := pricing.NewContext(s.Document, a.Table)

	doc := s.Document.Clone()
	lines, lineErr := pricing.Reprice(doc.Lines, ctx)
	staged, stagedErr := pricing.Reprice(doc.Staged, ctx)
	if err := errors.Join(lineErr, stagedErr); err != nil {
		return s, err
	}
	doc.Lines = lines
	doc.Staged = staged
	s.Document = doc
	return s, nil
}

// prepareLine assigns an ID and prices a new line in the document currency
func prepareLine(s State, line model.Line) (model.Line, error) {
	if line.ID == "" {
		line.ID = uuid.NewString()
	} else if hasLine(s.Document, line.ID) {
		return line, fmt.Errorf("%w: %s", model.ErrDuplicateLine, line.ID)
	}
	line.Priced = false
	line.Currency = model.NormalizeCurrency(string(line.Currency))

	ctx, _ := pricing.NewContext(s.Document, s.Rates)
	if line.Currency != "" && line.Currency != ctx.Currency {
		if err := pricing.Validate(line); err != nil {
			return line, err
		}
		return pricing.ConvertLine(line, line.Currency, s.Rates, ctx)
	}

	priced, err := pricing.Compute(line, ctx)
	if err != nil && !errors.Is(err, model.ErrRateUnavailable) {
		return line, err
	}
	return priced, nil
}

func hasLine(doc model.Document, id string) bool {
	if doc.FindLine(id) >= 0 {
		return true
	}
	for _, l := range doc.Staged {
		if l.ID == id {
			return true
		}
	}
	return false
}
