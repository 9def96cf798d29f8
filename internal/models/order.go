package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate applied to every order subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

// MoneyPlaces is the number of decimal places money amounts are rounded to.
const MoneyPlaces = 2

type Order struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"` // PENDING, CONFIRMED, SHIPPED, DELIVERED, CANCELLED
	OrderDate       time.Time       `json:"orderDate"`
	PaymentStatus   string          `json:"paymentStatus"`
	DeliveryAddress string          `json:"deliveryAddress"`
}

type OrderItem struct {
	ID            string          `json:"id"`
	EquipmentID   string          `json:"equipmentId"`
	EquipmentName string          `json:"equipmentName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Quantities sums requested quantities per equipment id.
func (o *Order) Quantities() map[string]int {
	out := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		out[item.EquipmentID] += item.Quantity
	}
	return out
}

// ApplyTotals recomputes subtotal, tax and total from the item lines.
func (o *Order) ApplyTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	o.Subtotal = subtotal
	o.Tax = CalculateTax(subtotal)
	o.TotalAmount = subtotal.Add(o.Tax)
}

// CalculateTax returns TaxRate * subtotal rounded to MoneyPlaces.
func CalculateTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(MoneyPlaces)
}

// LineTotal returns price * quantity rounded to MoneyPlaces.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(MoneyPlaces)
}
