package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"turfhub/internal/config"
	"turfhub/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryCollection keeps serialized copies so callers never share pointers with the store.
type memoryCollection[T any] struct {
	mu      sync.RWMutex
	kind    string
	entries map[string]memoryEntry
	ttl     time.Duration
	idOf    func(*T) string
	now     func() time.Time
}

func newMemoryCollection[T any](kind string, ttl time.Duration, idOf func(*T) string, now func() time.Time) *memoryCollection[T] {
	return &memoryCollection[T]{
		kind:    kind,
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		idOf:    idOf,
		now:     now,
	}
}

func (c *memoryCollection[T]) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *memoryCollection[T]) save(v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.kind, err)
	}
	entry := memoryEntry{data: data}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.idOf(v)] = entry
	return nil
}

func (c *memoryCollection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || c.expired(entry) {
		return nil, nil
	}
	return c.decode(id, entry)
}

func (c *memoryCollection[T]) getAll() ([]*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v, err := c.decode(id, c.entries[id])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *memoryCollection[T]) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *memoryCollection[T]) decode(id string, entry memoryEntry) (*T, error) {
	var v T
	if err := json.Unmarshal(entry.data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind, id, err)
	}
	return &v, nil
}

// MemoryStore is an in-process domain.Store with the same TTL semantics as RedisStore.
type MemoryStore struct {
	turfs     *memoryCollection[models.Turf]
	bookings  *memoryCollection[models.Booking]
	equipment *memoryCollection[models.Equipment]
	orders    *memoryCollection[models.Order]
}

func NewMemoryStore(cfg config.StoreConfig) *MemoryStore {
	return newMemoryStore(cfg, time.Now)
}

func newMemoryStore(cfg config.StoreConfig, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		turfs:     newMemoryCollection("turf", cfg.TurfTTL, func(t *models.Turf) string { return t.ID }, now),
		bookings:  newMemoryCollection("booking", cfg.BookingTTL, func(b *models.Booking) string { return b.ID }, now),
		equipment: newMemoryCollection("equipment", cfg.EquipmentTTL, func(e *models.Equipment) string { return e.ID }, now),
		orders:    newMemoryCollection("order", cfg.OrderTTL, func(o *models.Order) string { return o.ID }, now),
	}
}

func (s *MemoryStore) SaveTurf(ctx context.Context, turf *models.Turf) error {
	return s.turfs.save(turf)
}

func (s *MemoryStore) GetTurf(ctx context.Context, id string) (*models.Turf, error) {
	return s.turfs.get(id)
}

func (s *MemoryStore) GetAllTurfs(ctx context.Context) ([]*models.Turf, error) {
	return s.turfs.getAll()
}

func (s *MemoryStore) DeleteTurf(ctx context.Context, id string) error {
	s.turfs.delete(id)
	return nil
}

func (s *MemoryStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	return s.bookings.save(booking)
}

func (s *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.bookings.get(id)
}

func (s *MemoryStore) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.bookings.getAll()
}

func (s *MemoryStore) DeleteBooking(ctx context.Context, id string) error {
	s.bookings.delete(id)
	return nil
}

func (s *MemoryStore) SaveEquipment(ctx context.Context, equipment *models.Equipment) error {
	return s.equipment.save(equipment)
}

func (s *MemoryStore) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	return s.equipment.get(id)
}

func (s *MemoryStore) GetAllEquipment(ctx context.Context) ([]*models.Equipment, error) {
	return s.equipment.getAll()
}

func (s *MemoryStore) DeleteEquipment(ctx context.Context, id string) error {
	s.equipment.delete(id)
	return nil
}

func (s *MemoryStore) SaveOrder(ctx context.Context, order *models.Order) error {
	return s.orders.save(order)
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.get(id)
}

func (s *MemoryStore) GetAllOrders(ctx context.Context) ([]*models.Order, error) {
	return s.orders.getAll()
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	s.orders.delete(id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
