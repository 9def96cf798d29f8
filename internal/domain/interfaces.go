package domain

import (
	"context"

	"turfhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Get* methods return (nil, nil) when the record is absent or expired.
type TurfRepository interface {
	SaveTurf(ctx context.Context, turf *models.Turf) error
	GetTurf(ctx context.Context, id string) (*models.Turf, error)
	GetAllTurfs(ctx context.Context) ([]*models.Turf, error)
	DeleteTurf(ctx context.Context, id string) error
}

type BookingRepository interface {
	SaveBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

type EquipmentRepository interface {
	SaveEquipment(ctx context.Context, equipment *models.Equipment) error
	GetEquipment(ctx context.Context, id string) (*models.Equipment, error)
	GetAllEquipment(ctx context.Context) ([]*models.Equipment, error)
	DeleteEquipment(ctx context.Context, id string) error
}

type OrderRepository interface {
	SaveOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetAllOrders(ctx context.Context) ([]*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// Store is the key/value persistence substrate shared by every entity type.
type Store interface {
	TurfRepository
	BookingRepository
	EquipmentRepository
	OrderRepository
	Ping(ctx context.Context) error
}

// Locker provides per-key mutual exclusion. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
