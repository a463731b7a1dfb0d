// Package document holds the editable invoice state and the typed actions
// that change it.
//
// Every mutation goes through Reduce: the action updates the affected lines
// with the pricing package and the totals are rebuilt from scratch as the
// last step. A failing action leaves the state exactly as it was.
package document

import (
	"errors"
	"fmt"

	"github.com/rezonia/invoice-pricer/internal/model"
	"github.com/rezonia/invoice-pricer/internal/pricing"
)

// State is one immutable snapshot of the document and the rates it is priced with
type State struct {
	Document model.Document
	Rates    model.RateResolver
}

// NewState creates an empty document in home currency
func NewState(home model.CurrencyCode, rates model.RateResolver) State {
	return finalize(State{
		Document: model.NewDocument(home),
		Rates:    rates,
	})
}

// Reduce applies action to state and returns the next state.
// On error the input state is returned unchanged.
func Reduce(state State, action Action) (State, error) {
	next, err := action.apply(state)
	if err != nil {
		return state, fmt.Errorf("%s: %w", action.Name(), err)
	}
	return finalize(next), nil
}

// finalize records whether the document currency resolves and replaces the totals
func finalize(state State) State {
	doc := state.Document
	doc.RateIssue = nil
	if _, err := pricing.NewContext(doc, state.Rates); err != nil {
		var rateErr *model.RateUnavailableError
		if errors.As(err, &rateErr) {
			doc.RateIssue = rateErr
		}
	}
	doc.Totals = pricing.Aggregate(doc)
	state.Document = doc
	return state
}

// Submission returns the handoff payload for state.
//
// It is refused while the document has no lines, while the document currency
// has no resolvable rate, or if the numbers fail verification.
func (s State) Submission() (model.Submission, error) {
	doc := s.Document
	if len(doc.Lines) == 0 {
		return model.Submission{}, model.ErrNoLines
	}
	if doc.RateIssue != nil {
		return model.Submission{}, doc.RateIssue
	}
	if err := pricing.Verify(doc); err != nil {
		return model.Submission{}, fmt.Errorf("document is inconsistent: %w", err)
	}

	ctx, err := pricing.NewContext(doc, s.Rates)
	if err != nil {
		return model.Submission{}, err
	}

	doc = doc.Clone()
	return model.Submission{
		Currency:     doc.Currency,
		TaxMode:      doc.TaxMode,
		PriceMode:    doc.PriceMode,
		ExchangeRate: ctx.Rate,
		Lines:        doc.Lines,
		Totals:       doc.Totals,
	}, nil
}
