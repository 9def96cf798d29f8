package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"turfhub/internal/domain"
	"turfhub/internal/events"
	"turfhub/internal/logging"
	"turfhub/internal/metrics"
	"turfhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EquipmentService owns equipment stock; orders reserve and restore it.
type EquipmentService struct {
	store    domain.Store
	locker   domain.Locker
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewEquipmentService(store domain.Store, locker domain.Locker, eventBus domain.EventPublisher, logger *zerolog.Logger) *EquipmentService {
	return &EquipmentService{
		store:    store,
		locker:   locker,
		eventBus: eventBus,
		logger:   logging.Component(logger, "equipment_service"),
		now:      time.Now,
	}
}

func (s *EquipmentService) ListEquipment(ctx context.Context) ([]*models.Equipment, error) {
	return s.store.GetAllEquipment(ctx)
}

func (s *EquipmentService) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	equipment, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, fmt.Errorf("equipment %s: %w", id, domain.ErrNotFound)
	}
	return equipment, nil
}

func validateEquipment(e *models.Equipment) error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("equipment name is required: %w", domain.ErrInvalidArgument)
	case !models.IsCategory(e.Category):
		return fmt.Errorf("unknown category %q: %w", e.Category, domain.ErrInvalidArgument)
	case e.Price.IsNegative():
		return fmt.Errorf("equipment price must not be negative: %w", domain.ErrInvalidArgument)
	case e.StockQuantity < 0:
		return fmt.Errorf("stock quantity must not be negative: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *EquipmentService) CreateEquipment(ctx context.Context, equipment *models.Equipment) error {
	equipment.Category = strings.ToUpper(strings.TrimSpace(equipment.Category))
	if err := validateEquipment(equipment); err != nil {
		return err
	}
	if equipment.ID == "" {
		equipment.ID = uuid.NewString()
	}

	unlock, err := lockAll(ctx, s.locker, models.EquipmentKeyPrefix+equipment.ID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.store.GetEquipment(ctx, equipment.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("equipment %s: %w", equipment.ID, domain.ErrAlreadyExists)
	}
	return s.store.SaveEquipment(ctx, equipment)
}

// UpdateEquipment replaces the record as given; the available flag is not
// recomputed from stock here.
func (s *EquipmentService) UpdateEquipment(ctx context.Context, id string, equipment *models.Equipment) error {
	equipment.Category = strings.ToUpper(strings.TrimSpace(equipment.Category))
	if err := validateEquipment(equipment); err != nil {
		return err
	}

	unlock, err := lockAll(ctx, s.locker, models.EquipmentKeyPrefix+id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.GetEquipment(ctx, id); err != nil {
		return err
	}
	equipment.ID = id
	return s.store.SaveEquipment(ctx, equipment)
}

func (s *EquipmentService) DeleteEquipment(ctx context.Context, id string) error {
	if _, err := s.GetEquipment(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteEquipment(ctx, id)
}

func (s *EquipmentService) EquipmentByCategory(ctx context.Context, category string) ([]*models.Equipment, error) {
	return s.filterEquipment(ctx, func(e *models.Equipment) bool { return e.InStock() && e.InCategory(category) })
}

func (s *EquipmentService) AvailableEquipment(ctx context.Context) ([]*models.Equipment, error) {
	return s.filterEquipment(ctx, (*models.Equipment).InStock)
}

func (s *EquipmentService) filterEquipment(ctx context.Context, keep func(*models.Equipment) bool) ([]*models.Equipment, error) {
	all, err := s.store.GetAllEquipment(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Equipment, 0, len(all))
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// UpdateStock applies a signed delta. A result below zero is rejected with
// ErrInsufficientStock and leaves the stock unchanged.
func (s *EquipmentService) UpdateStock(ctx context.Context, id string, delta int) (*models.Equipment, error) {
	unlock, err := lockAll(ctx, s.locker, models.EquipmentKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	equipment, err := s.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyStock(ctx, equipment, delta); err != nil {
		return nil, err
	}
	return equipment, nil
}

// applyStock expects the caller to hold the equipment lock.
func (s *EquipmentService) applyStock(ctx context.Context, equipment *models.Equipment, delta int) error {
	newStock := equipment.StockQuantity + delta
	if newStock < 0 {
		metrics.IncStockRejection()
		return fmt.Errorf("equipment %s has %d, change %d: %w", equipment.ID, equipment.StockQuantity, delta, domain.ErrInsufficientStock)
	}

	equipment.StockQuantity = newStock
	equipment.Available = newStock > 0
	if err := s.store.SaveEquipment(ctx, equipment); err != nil {
		return err
	}

	s.publish(events.EventStockChanged, events.StockEventPayload{
		EquipmentID: equipment.ID,
		Delta:       delta,
		Stock:       newStock,
		Available:   equipment.Available,
	})
	return nil
}

func validateOrder(o *models.Order) error {
	switch {
	case strings.TrimSpace(o.CustomerName) == "":
		return fmt.Errorf("customer name is required: %w", domain.ErrInvalidArgument)
	case strings.TrimSpace(o.CustomerEmail) == "":
		return fmt.Errorf("customer email is required: %w", domain.ErrInvalidArgument)
	case strings.TrimSpace(o.CustomerPhone) == "":
		return fmt.Errorf("customer phone is required: %w", domain.ErrInvalidArgument)
	case len(o.Items) == 0:
		return fmt.Errorf("order has no items: %w", domain.ErrInvalidArgument)
	}
	// Каждая строка и сумма строк одной позиции ограничены MaxOrderQuantity,
	// поэтому сложение в Quantities не переполняется
	total := make(map[string]int, len(o.Items))
	for i, item := range o.Items {
		if strings.TrimSpace(item.EquipmentID) == "" {
			return fmt.Errorf("item %d: equipment id is required: %w", i, domain.ErrInvalidArgument)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive: %w", i, domain.ErrInvalidArgument)
		}
		if item.Quantity > models.MaxOrderQuantity-total[item.EquipmentID] {
			return fmt.Errorf("equipment %s: quantity exceeds %d: %w", item.EquipmentID, models.MaxOrderQuantity, domain.ErrInvalidArgument)
		}
		total[item.EquipmentID] += item.Quantity
	}
	return nil
}

func equipmentKeys(ids []string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, models.EquipmentKeyPrefix+id)
	}
	return keys
}

func sortedIDs(quantities map[string]int) []string {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateOrder prices the order from current equipment prices and reserves stock.
// Every equipment record in the order stays locked until the decrements are saved.
func (s *EquipmentService) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}

	quantities := order.Quantities()
	ids := sortedIDs(quantities)

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	keys := append(equipmentKeys(ids), models.OrderKeyPrefix+order.ID)

	unlock, err := lockAll(ctx, s.locker, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	stock := make(map[string]*models.Equipment, len(ids))
	for _, id := range ids {
		equipment, err := s.store.GetEquipment(ctx, id)
		if err != nil {
			return err
		}
		if equipment == nil {
			metrics.IncStockRejection()
			return fmt.Errorf("equipment %s not found: %w", id, domain.ErrInsufficientStock)
		}
		if quantities[id] > equipment.StockQuantity {
			metrics.IncStockRejection()
			return fmt.Errorf("equipment %s has %d, requested %d: %w", id, equipment.StockQuantity, quantities[id], domain.ErrInsufficientStock)
		}
		stock[id] = equipment
	}

	existing, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrAlreadyExists)
	}

	// Цены берем из текущих записей, присланные клиентом игнорируем
	for i := range order.Items {
		item := &order.Items[i]
		equipment := stock[item.EquipmentID]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.EquipmentName = equipment.Name
		item.UnitPrice = equipment.Price
		item.TotalPrice = models.LineTotal(equipment.Price, item.Quantity)
	}
	order.ApplyTotals()

	order.OrderDate = s.now()
	order.Status = models.StatusPending
	order.PaymentStatus = models.PaymentPending

	if err := s.store.SaveOrder(ctx, order); err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.applyStock(ctx, stock[id], -quantities[id]); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID).Str("equipment_id", id).Msg("stock decrement failed after order save")
			return fmt.Errorf("reserve stock for order %s: %w", order.ID, err)
		}
	}

	metrics.IncOrderCreated()
	s.publishOrder(events.EventOrderCreated, order)
	s.logger.Info().
		Str("order_id", order.ID).
		Int("items", len(order.Items)).
		Str("total", order.TotalAmount.StringFixed(models.MoneyPlaces)).
		Msg("order created")

	return nil
}

func (s *EquipmentService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return order, nil
}

func (s *EquipmentService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return s.store.GetAllOrders(ctx)
}

func (s *EquipmentService) UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, error) {
	if !models.IsOrderStatus(status) {
		return nil, fmt.Errorf("unknown order status %q: %w", status, domain.ErrInvalidArgument)
	}

	order, err := s.mutateOrder(ctx, id, func(o *models.Order) { o.Status = status })
	if err != nil {
		return nil, err
	}
	s.publishOrder(events.EventOrderStatusChanged, order)
	return order, nil
}

func (s *EquipmentService) UpdateOrderPaymentStatus(ctx context.Context, id, status string) (*models.Order, error) {
	if !models.IsPaymentStatus(status) {
		return nil, fmt.Errorf("unknown payment status %q: %w", status, domain.ErrInvalidArgument)
	}

	order, err := s.mutateOrder(ctx, id, func(o *models.Order) { o.PaymentStatus = status })
	if err != nil {
		return nil, err
	}
	s.publishOrder(events.EventOrderStatusChanged, order)
	return order, nil
}

func (s *EquipmentService) mutateOrder(ctx context.Context, id string, apply func(*models.Order)) (*models.Order, error) {
	unlock, err := lockAll(ctx, s.locker, models.OrderKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(order)
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder is allowed only from PENDING. Stock is restored before the
// status changes; equipment deleted in the meantime is skipped.
func (s *EquipmentService) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	// Позиции заказа не меняются, поэтому набор ключей можно взять до блокировки
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := sortedIDs(current.Quantities())

	unlock, err := lockAll(ctx, s.locker, append(equipmentKeys(ids), models.OrderKeyPrefix+id)...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("order %s is %s: %w", id, order.Status, domain.ErrInvalidTransition)
	}
	quantities := order.Quantities()

	for _, equipmentID := range ids {
		equipment, err := s.store.GetEquipment(ctx, equipmentID)
		if err != nil {
			return nil, err
		}
		if equipment == nil {
			s.logger.Warn().Str("order_id", id).Str("equipment_id", equipmentID).Msg("skip stock restore for missing equipment")
			continue
		}
		if err := s.applyStock(ctx, equipment, quantities[equipmentID]); err != nil {
			return nil, err
		}
	}

	order.Status = models.StatusCancelled
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	s.publishOrder(events.EventOrderCancelled, order)
	return order, nil
}

func (s *EquipmentService) publishOrder(eventType string, order *models.Order) {
	s.publish(eventType, events.OrderEventPayload{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		Items:         len(order.Items),
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
	})
}

func (s *EquipmentService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
