package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AvailabilityInStock    = "https://schema.org/InStock"
	AvailabilityOutOfStock = "https://schema.org/OutOfStock"
)

type Product struct {
	ID           string
	SKU          string
	Name         string
	Description  string
	Price        decimal.Decimal
	Currency     string
	Category     string
	Brand        string
	Availability string
	IsActive     bool
	CreatedAt    time.Time
}

// Available reports whether the product can be sold right now.
func (p *Product) Available() bool {
	return p.IsActive && p.Availability == AvailabilityInStock
}

// PriceQuote is the authoritative price answer from the catalog.
type PriceQuote struct {
	ProductID string
	UnitPrice decimal.Decimal
	Currency  string
	Available bool
}

func (p *Product) Quote() *PriceQuote {
	return &PriceQuote{
		ProductID: p.ID,
		UnitPrice: p.Price,
		Currency:  p.Currency,
		Available: p.Available(),
	}
}
