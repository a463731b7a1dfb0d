package server

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// Action types accepted by the document actions endpoint
const (
	ActionAddLine       = "add_line"
	ActionStageLine     = "stage_line"
	ActionUpdateLine    = "update_line"
	ActionRemoveLine    = "remove_line"
	ActionCommitStaged  = "commit_staged"
	ActionDiscardStaged = "discard_staged"
	ActionSetCurrency   = "set_currency"
	ActionSetTaxMode    = "set_tax_mode"
	ActionSetPriceMode  = "set_price_mode"
)

// ActionRequest is one document action
type ActionRequest struct {
	Type      string              `json:"type" binding:"required"`
	LineID    string              `json:"line_id,omitempty"`
	Line      *document.LineInput `json:"line,omitempty"`
	Patch     *LinePatchInput     `json:"patch,omitempty"`
	Currency  string              `json:"currency,omitempty"`
	TaxMode   string              `json:"tax_mode,omitempty"`
	PriceMode string              `json:"price_mode,omitempty"`
}

// LinePatchInput holds the fields of an update_line action
type LinePatchInput struct {
	ItemCode     *string          `json:"item_code,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	VATRate      *decimal.Decimal `json:"vat_rate,omitempty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
}

// Action converts the request into a document action
func (r ActionRequest) Action() (document.Action, error) {
	switch r.Type {
	case ActionAddLine, ActionStageLine:
		if r.Line == nil {
			return nil, fmt.Errorf("%s requires line", r.Type)
		}
		if r.Type == ActionStageLine {
			return document.StageLine{Line: r.Line.Line()}, nil
		}
		return document.AddLine{Line: r.Line.Line()}, nil

	case ActionUpdateLine:
		if r.LineID == "" || r.Patch == nil {
			return nil, fmt.Errorf("%s requires line_id and patch", r.Type)
		}
		return document.UpdateLine{ID: r.LineID, Patch: document.LinePatch{
			ItemCode:     r.Patch.ItemCode,
			Description:  r.Patch.Description,
			Quantity:     r.Patch.Quantity,
			UnitPrice:    r.Patch.UnitPrice,
			VATRate:      r.Patch.VATRate,
			DiscountRate: r.Patch.DiscountRate,
		}}, nil

	case ActionRemoveLine:
		if r.LineID == "" {
			return nil, fmt.Errorf("%s requires line_id", r.Type)
		}
		return document.RemoveLine{ID: r.LineID}, nil

	case ActionCommitStaged:
		return document.CommitStaged{}, nil

	case ActionDiscardStaged:
		return document.DiscardStaged{}, nil

	case ActionSetCurrency:
		code := model.NormalizeCurrency(r.Currency)
		if len(code) != 3 {
			return nil, fmt.Errorf("invalid currency %q", r.Currency)
		}
		return document.SetCurrency{Currency: code}, nil

	case ActionSetTaxMode:
		mode, err := model.ParseTaxMode(r.TaxMode)
		if err != nil {
			return nil, err
		}
		return document.SetTaxMode{Mode: mode}, nil

	case ActionSetPriceMode:
		mode, err := model.ParsePriceMode(r.PriceMode)
		if err != nil {
			return nil, err
		}
		return document.SetPriceMode{Mode: mode}, nil
	}
	return nil, fmt.Errorf("unknown action type %q", r.Type)
}

// StageRequest stages a catalogue item
type StageRequest struct {
	ItemCode string          `json:"item_code" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// RefreshRequest selects the rate source to refresh from
type RefreshRequest struct {
	Source string `json:"source,omitempty"`
}

// DocumentResponse is the response for document endpoints
type DocumentResponse struct {
	Document  model.Document `json:"document"`
	RateIssue string         `json:"rate_issue,omitempty"`
	CanSubmit bool           `json:"can_submit"`
}

func newDocumentResponse(doc model.Document) DocumentResponse {
	resp := DocumentResponse{
		Document:  doc,
		CanSubmit: doc.RateIssue == nil && len(doc.Lines) > 0,
	}
	if doc.RateIssue != nil {
		resp.RateIssue = doc.RateIssue.Error()
	}
	return resp
}

// RateOutput is one currency in RatesResponse
type RateOutput struct {
	Currency model.CurrencyCode `json:"currency"`
	Selling  decimal.Decimal    `json:"selling"`
	Buying   decimal.Decimal    `json:"buying"`
}

// RatesResponse is the response for rate endpoints
type RatesResponse struct {
	Home      model.CurrencyCode `json:"home"`
	Source    model.RateSource   `json:"source,omitempty"`
	FetchedAt *time.Time         `json:"fetched_at,omitempty"`
	Sequence  uint64             `json:"sequence"`
	Rates     []RateOutput       `json:"rates"`
}

func newRatesResponse(table *model.RateTable) RatesResponse {
	resp := RatesResponse{
		Home:     table.Home,
		Source:   table.Source,
		Sequence: table.Sequence,
		Rates:    make([]RateOutput, 0, len(table.Rates)),
	}
	if !table.FetchedAt.IsZero() {
		fetched := table.FetchedAt
		resp.FetchedAt = &fetched
	}
	for _, code := range table.Currencies() {
		rate, ok := table.Rates[code]
		if !ok {
			continue
		}
		resp.Rates = append(resp.Rates, RateOutput{
			Currency: rate.Currency,
			Selling:  rate.Selling,
			Buying:   rate.Buying,
		})
	}
	return resp
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	LineID   string `json:"line_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Currency string `json:"currency,omitempty"`
}
