package models

import "time"

const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
)

const (
	PaymentPending  = "PENDING"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
)

const (
	CategorySportingEquipment = "SPORTING_EQUIPMENT"
	CategoryEnergyDrinks      = "ENERGY_DRINKS"
	CategoryAccessories       = "ACCESSORIES"
)

// Key prefixes and index sets used by the key/value store.
const (
	TurfKeyPrefix      = "turf:"
	BookingKeyPrefix   = "booking:"
	EquipmentKeyPrefix = "equipment:"
	OrderKeyPrefix     = "order:"

	AllTurfsKey     = "all_turfs"
	AllBookingsKey  = "all_bookings"
	AllEquipmentKey = "all_equipment"
	AllOrdersKey    = "all_orders"

	LockKeyPrefix = "lock:"
)

const (
	// DefaultCatalogTTL время жизни записей каталога (площадки, инвентарь)
	DefaultCatalogTTL = 24 * time.Hour

	// DefaultTransactionTTL время жизни бронирований и заказов
	DefaultTransactionTTL = 30 * 24 * time.Hour

	// DefaultLockTTL максимальное время удержания блокировки
	DefaultLockTTL = 10 * time.Second

	// DefaultLockWait сколько ждать освобождения блокировки
	DefaultLockWait = 3 * time.Second

	// JournalQueueSize размер очереди журнала событий
	JournalQueueSize = 1000

	// NotifyQueueSize размер очереди уведомлений
	NotifyQueueSize = 100

	// MaxOrderQuantity предел количества одной позиции заказа (после суммирования строк)
	MaxOrderQuantity = 10000

	// DefaultActivityLimit количество записей журнала по умолчанию
	DefaultActivityLimit = 50
)

var bookingStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

var orderStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

var paymentStatuses = map[string]bool{
	PaymentPending:  true,
	PaymentPaid:     true,
	PaymentRefunded: true,
}

var categories = map[string]bool{
	CategorySportingEquipment: true,
	CategoryEnergyDrinks:      true,
	CategoryAccessories:       true,
}

func IsBookingStatus(s string) bool { return bookingStatuses[s] }

func IsOrderStatus(s string) bool { return orderStatuses[s] }

func IsPaymentStatus(s string) bool { return paymentStatuses[s] }

func IsCategory(s string) bool { return categories[s] }
