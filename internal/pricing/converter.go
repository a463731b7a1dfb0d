package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/invoice-pricer/internal/decimal"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// ConvertPrice re-expresses price from one currency in another, pivoting
// through the home currency. The result keeps money.PricePlaces decimals.
func ConvertPrice(price decimal.Decimal, from, to model.CurrencyCode, rates model.RateResolver) (decimal.Decimal, error) {
	if from == to {
		return price, nil
	}
	if rates == nil {
		return price, model.NewRateUnavailableError(to, "", errors.New("no rate table loaded"))
	}

	home := rates.HomeCurrency()
	switch {
	case from == home:
		target, err := rates.Resolve(to)
		if err != nil {
			return price, err
		}
		return money.RoundPrice(money.Div(price, target)), nil

	case to == home:
		source, err := rates.Resolve(from)
		if err != nil {
			return price, err
		}
		return money.RoundPrice(price.Mul(source)), nil

	default:
		source, err := rates.Resolve(from)
		if err != nil {
			return price, err
		}
		target, err := rates.Resolve(to)
		if err != nil {
			return price, err
		}
		return money.RoundPrice(money.Div(price.Mul(source), target)), nil
	}
}

// ConvertLine moves line into ctx.Currency and recomputes it.
// An empty line currency is read as from. On error the line is returned
// unchanged.
func ConvertLine(line model.Line, from model.CurrencyCode, rates model.RateResolver, ctx Context) (model.Line, error) {
	lineCurrency := line.Currency
	if lineCurrency == "" {
		lineCurrency = from
	}
	if lineCurrency == ctx.Currency {
		return line, nil
	}

	price, err := ConvertPrice(line.UnitPrice, lineCurrency, ctx.Currency, rates)
	if err != nil {
		return line, err
	}

	converted := line
	converted.UnitPrice = price
	converted.Currency = ctx.Currency

	priced, err := Compute(converted, ctx.WithExtract())
	if err != nil && !errors.Is(err, model.ErrRateUnavailable) {
		return line, err
	}
	return priced, nil
}

// Retarget converts every line to ctx.Currency.
//
// Lines already in the target currency are left as they are. A line whose
// conversion needs an unavailable rate keeps its currency and price; the
// per-line errors are joined and returned alongside the new slice.
func Retarget(lines []model.Line, from model.CurrencyCode, rates model.RateResolver, ctx Context) ([]model.Line, error) {
	if lines == nil {
		return nil, nil
	}
	out := make([]model.Line, len(lines))
	var errs []error
	for i, line := range lines {
		converted, err := ConvertLine(line, from, rates, ctx)
		if err != nil {
			errs = append(errs, err)
		}
		out[i] = converted
	}
	return out, errors.Join(errs...)
}
