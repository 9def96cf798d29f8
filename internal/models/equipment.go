package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Equipment struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Category      string          `json:"category" yaml:"category"` // SPORTING_EQUIPMENT, ENERGY_DRINKS, ACCESSORIES
	Description   string          `json:"description" yaml:"description"`
	Price         decimal.Decimal `json:"price" yaml:"price"`
	StockQuantity int             `json:"stockQuantity" yaml:"stock_quantity"`
	ImageURL      string          `json:"imageUrl" yaml:"image_url"`
	Available     bool            `json:"available" yaml:"available"`
}

// InStock is the listing predicate: both the flag and a positive stock are required.
func (e *Equipment) InStock() bool {
	return e.Available && e.StockQuantity > 0
}

func (e *Equipment) InCategory(category string) bool {
	return strings.EqualFold(e.Category, strings.TrimSpace(category))
}
