package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// ErrProductNotFound is returned by lookups for unknown item codes
var ErrProductNotFound = errors.New("product not found")

// Product holds the price-list defaults for an item
type Product struct {
	ItemCode    string             `json:"item_code"`
	Description string             `json:"description"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	VATRate     decimal.Decimal    `json:"vat_rate"`
	Currency    model.CurrencyCode `json:"currency"`
}

// ProductLookup supplies default price and VAT rate for a staged item
type ProductLookup interface {
	Lookup(ctx context.Context, itemCode string) (Product, error)
}

// StaticLookup is an in-memory price list
type StaticLookup struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewStaticLookup creates a lookup over products
func NewStaticLookup(products ...Product) *StaticLookup {
	l := &StaticLookup{products: make(map[string]Product, len(products))}
	for _, p := range products {
		l.Put(p)
	}
	return l
}

// Put adds or replaces a product
func (l *StaticLookup) Put(p Product) {
	l.mu.Lock()
	l.products[strings.ToUpper(p.ItemCode)] = p
	l.mu.Unlock()
}

// Lookup returns the product for itemCode, case-insensitively
func (l *StaticLookup) Lookup(ctx context.Context, itemCode string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	l.mu.RLock()
	p, ok := l.products[strings.ToUpper(strings.TrimSpace(itemCode))]
	l.mu.RUnlock()
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, itemCode)
	}
	return p, nil
}

// LineFromProduct builds an unpriced line for qty units of p
func LineFromProduct(p Product, qty decimal.Decimal) model.Line {
	return model.Line{
		ItemCode:     p.ItemCode,
		Description:  p.Description,
		Quantity:     qty,
		UnitPrice:    p.UnitPrice,
		VATRate:      p.VATRate,
		DiscountRate: decimal.Zero,
		Currency:     p.Currency,
	}
}
