package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-pricer/internal/decimal"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// Aggregate builds a fresh Totals from the committed lines of doc.
// Staged lines are not part of the document totals.
func Aggregate(doc model.Document) model.Totals {
	totals := model.Totals{
		TotalAmount:    money.Zero,
		DiscountAmount: money.Zero,
		SubtotalAmount: money.Zero,
		VATAmount:      money.Zero,
		NetAmount:      money.Zero,
		LineCount:      len(doc.Lines),
	}

	home := money.Zero
	homeComplete := true
	groups := make(map[string]*model.VATGroup)

	for _, line := range doc.Lines {
		totals.TotalAmount = totals.TotalAmount.Add(line.TotalAmount)
		totals.DiscountAmount = totals.DiscountAmount.Add(line.DiscountAmount)
		totals.SubtotalAmount = totals.SubtotalAmount.Add(line.SubtotalAmount)
		totals.VATAmount = totals.VATAmount.Add(line.VATAmount)
		totals.NetAmount = totals.NetAmount.Add(line.NetAmount)

		if line.HomeCurrencyEquivalent.Valid {
			home = home.Add(line.HomeCurrencyEquivalent.Decimal)
		} else {
			homeComplete = false
		}

		key := line.EffectiveVATRate.String()
		group, ok := groups[key]
		if !ok {
			group = &model.VATGroup{Rate: line.EffectiveVATRate, Base: money.Zero, VAT: money.Zero}
			groups[key] = group
		}
		group.Base = group.Base.Add(line.SubtotalAmount)
		group.VAT = group.VAT.Add(line.VATAmount)
	}

	totals.TotalAmount = money.Round2(totals.TotalAmount)
	totals.DiscountAmount = money.Round2(totals.DiscountAmount)
	totals.SubtotalAmount = money.Round2(totals.SubtotalAmount)
	totals.VATAmount = money.Round2(totals.VATAmount)
	totals.NetAmount = money.Round2(totals.NetAmount)

	if doc.IsForeign() && homeComplete {
		totals.HomeCurrencyEquivalentTotal = decimal.NewNullDecimal(money.Round2(home))
	}

	if len(groups) > 0 {
		totals.VATBreakdown = make([]model.VATGroup, 0, len(groups))
		for _, g := range groups {
			totals.VATBreakdown = append(totals.VATBreakdown, model.VATGroup{
				Rate: g.Rate,
				Base: money.Round2(g.Base),
				VAT:  money.Round2(g.VAT),
			})
		}
		sort.Slice(totals.VATBreakdown, func(i, j int) bool {
			return totals.VATBreakdown[i].Rate.LessThan(totals.VATBreakdown[j].Rate)
		})
	}

	return totals
}

// Verify checks the line and total invariants of doc and reports the first
// violation found.
func Verify(doc model.Document) error {
	for _, line := range doc.Lines {
		if !line.Priced {
			return fmt.Errorf("line %s: derived amounts not computed", line.ID)
		}
		if want := money.Round2(line.SubtotalAmount.Add(line.VATAmount)); !line.NetAmount.Equal(want) {
			return fmt.Errorf("line %s: net %s != subtotal+vat %s", line.ID, line.NetAmount, want)
		}
		if want := money.Round2(line.TotalAmount.Sub(line.DiscountAmount)); !line.SubtotalAmount.Equal(want) {
			return fmt.Errorf("line %s: subtotal %s != total-discount %s", line.ID, line.SubtotalAmount, want)
		}
		if line.Currency != doc.Currency {
			return fmt.Errorf("line %s: currency %s != document currency %s", line.ID, line.Currency, doc.Currency)
		}
	}

	want := Aggregate(doc)
	checks := []struct {
		field     string
		got, want decimal.Decimal
	}{
		{"total_amount", doc.Totals.TotalAmount, want.TotalAmount},
		{"discount_amount", doc.Totals.DiscountAmount, want.DiscountAmount},
		{"subtotal_amount", doc.Totals.SubtotalAmount, want.SubtotalAmount},
		{"vat_amount", doc.Totals.VATAmount, want.VATAmount},
		{"net_amount", doc.Totals.NetAmount, want.NetAmount},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			return fmt.Errorf("totals %s: %s != sum of lines %s", c.field, c.got, c.want)
		}
	}
	if doc.Totals.HomeCurrencyEquivalentTotal.Valid != want.HomeCurrencyEquivalentTotal.Valid ||
		!doc.Totals.HomeCurrencyEquivalentTotal.Decimal.Equal(want.HomeCurrencyEquivalentTotal.Decimal) {
		return fmt.Errorf("totals home_currency_equivalent_total is stale")
	}
	return nil
}
