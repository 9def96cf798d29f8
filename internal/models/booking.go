package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID            string          `json:"id"`
	TurfID        string          `json:"turfId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Hours         int             `json:"hours"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"` // PENDING, CONFIRMED, CANCELLED, COMPLETED
	BookingDate   time.Time       `json:"bookingDate"`
	PaymentStatus string          `json:"paymentStatus"` // PENDING, PAID, REFUNDED
}

// IsActive reports whether the booking still holds its time slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Overlaps uses half-open intervals: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}
