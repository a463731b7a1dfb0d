package document

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// LineInput holds the base fields of a line as supplied by a caller
type LineInput struct {
	ID           string             `json:"id,omitempty"`
	ItemCode     string             `json:"item_code"`
	Description  string             `json:"description,omitempty"`
	Quantity     decimal.Decimal    `json:"quantity"`
	UnitPrice    decimal.Decimal    `json:"unit_price"`
	VATRate      decimal.Decimal    `json:"vat_rate"`
	DiscountRate decimal.Decimal    `json:"discount_rate"`
	Currency     model.CurrencyCode `json:"currency,omitempty"`
}

// Line converts the input into an unpriced line
func (in LineInput) Line() model.Line {
	return model.Line{
		ID:           in.ID,
		ItemCode:     in.ItemCode,
		Description:  in.Description,
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		VATRate:      in.VATRate,
		DiscountRate: in.DiscountRate,
		Currency:     in.Currency,
	}
}

// Request describes a whole document to price in one call
type Request struct {
	Currency  model.CurrencyCode `json:"currency,omitempty"`
	TaxMode   model.TaxMode      `json:"tax_mode,omitempty"`
	PriceMode model.PriceMode    `json:"price_mode,omitempty"`
	Lines     []LineInput        `json:"lines"`
}

// Actions expands req into the action sequence that builds it:
// modes first, then currency, then one AddLine per line.
func (req Request) Actions() ([]Action, error) {
	taxMode, err := model.ParseTaxMode(string(req.TaxMode))
	if err != nil {
		return nil, err
	}
	priceMode, err := model.ParsePriceMode(string(req.PriceMode))
	if err != nil {
		return nil, err
	}

	actions := []Action{
		SetPriceMode{Mode: priceMode},
		SetTaxMode{Mode: taxMode},
	}
	if req.Currency != "" {
		actions = append(actions, SetCurrency{Currency: model.NormalizeCurrency(string(req.Currency))})
	}
	for _, in := range req.Lines {
		actions = append(actions, AddLine{Line: in.Line()})
	}
	return actions, nil
}

// Build prices req from an empty document in home currency
func Build(home model.CurrencyCode, req Request, rates model.RateResolver) (State, error) {
	actions, err := req.Actions()
	if err != nil {
		return State{}, err
	}

	state := NewState(home, rates)
	line := 0
	for _, action := range actions {
		state, err = Reduce(state, action)
		add, isLine := action.(AddLine)
		switch {
		case errors.Is(err, model.ErrModeUnchanged):
		case err != nil && isLine:
			return state, fmt.Errorf("line %d (%s): %w", line+1, add.Line.ItemCode, err)
		case err != nil:
			return state, err
		}
		if isLine {
			line++
		}
	}
	return state, nil
}
