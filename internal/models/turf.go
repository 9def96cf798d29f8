package models

import "github.com/shopspring/decimal"

type Turf struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type" yaml:"type"` // football, cricket, tennis, ...
	Size         string          `json:"size" yaml:"size"` // small, medium, large
	PricePerHour decimal.Decimal `json:"pricePerHour" yaml:"price_per_hour"`
	Available    bool            `json:"available" yaml:"available"`
	Description  string          `json:"description" yaml:"description"`
	ImageURL     string          `json:"imageUrl" yaml:"image_url"`
}
