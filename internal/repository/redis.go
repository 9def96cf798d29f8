package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"turfhub/internal/config"
	"turfhub/internal/domain"
	"turfhub/internal/models"

	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

// pruneScript drops index members whose primary key no longer exists.
// KEYS[1] = index set, ARGV[1] = key prefix, ARGV[2..] = candidate ids.
var pruneScript = redis.NewScript(`
local removed = 0
for i = 2, #ARGV do
  if redis.call('EXISTS', ARGV[1] .. ARGV[i]) == 0 then
    removed = removed + redis.call('SREM', KEYS[1], ARGV[i])
  end
end
return removed
`)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// collection stores JSON records of one entity type under prefix+id with a companion index set.
type collection[T any] struct {
	client *redis.Client
	kind   string
	prefix string
	index  string
	ttl    time.Duration
	idOf   func(*T) string
}

func (c *collection[T]) save(ctx context.Context, v *T) error {
	if c.client == nil {
		return storeError("save "+c.kind, errNilClient)
	}
	id := c.idOf(v)
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.kind, err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.prefix+id, data, c.ttl)
		pipe.SAdd(ctx, c.index, id)
		return nil
	})
	if err != nil {
		return storeError("save "+c.kind, err)
	}
	return nil
}

func (c *collection[T]) get(ctx context.Context, id string) (*T, error) {
	if c.client == nil {
		return nil, storeError("get "+c.kind, errNilClient)
	}
	val, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get "+c.kind, err)
	}

	var out T
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind, id, err)
	}
	return &out, nil
}

// getAll lists the index and fetches the members in one round trip.
// Members that vanished between the two calls are skipped and pruned from the index.
func (c *collection[T]) getAll(ctx context.Context) ([]*T, error) {
	if c.client == nil {
		return nil, storeError("list "+c.kind, errNilClient)
	}
	ids, err := c.client.SMembers(ctx, c.index).Result()
	if err != nil {
		return nil, storeError("list "+c.kind, err)
	}
	if len(ids) == 0 {
		return []*T{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.prefix + id
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError("list "+c.kind, err)
	}

	out := make([]*T, 0, len(vals))
	var stale []interface{}
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind, ids[i], err)
		}
		out = append(out, &v)
	}

	if len(stale) > 0 {
		args := append([]interface{}{c.prefix}, stale...)
		// Best effort: a failed prune only leaves dangling ids for the next listing.
		_ = pruneScript.Run(ctx, c.client, []string{c.index}, args...).Err()
	}
	return out, nil
}

func (c *collection[T]) delete(ctx context.Context, id string) error {
	if c.client == nil {
		return storeError("delete "+c.kind, errNilClient)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.prefix+id)
		pipe.SRem(ctx, c.index, id)
		return nil
	})
	if err != nil {
		return storeError("delete "+c.kind, err)
	}
	return nil
}

// RedisStore implements domain.Store on top of Redis strings and sets.
type RedisStore struct {
	client    *redis.Client
	turfs     *collection[models.Turf]
	bookings  *collection[models.Booking]
	equipment *collection[models.Equipment]
	orders    *collection[models.Order]
}

func NewRedisStore(client *redis.Client, cfg config.StoreConfig) *RedisStore {
	return &RedisStore{
		client: client,
		turfs: &collection[models.Turf]{
			client: client, kind: "turf", prefix: models.TurfKeyPrefix, index: models.AllTurfsKey,
			ttl: cfg.TurfTTL, idOf: func(t *models.Turf) string { return t.ID },
		},
		bookings: &collection[models.Booking]{
			client: client, kind: "booking", prefix: models.BookingKeyPrefix, index: models.AllBookingsKey,
			ttl: cfg.BookingTTL, idOf: func(b *models.Booking) string { return b.ID },
		},
		equipment: &collection[models.Equipment]{
			client: client, kind: "equipment", prefix: models.EquipmentKeyPrefix, index: models.AllEquipmentKey,
			ttl: cfg.EquipmentTTL, idOf: func(e *models.Equipment) string { return e.ID },
		},
		orders: &collection[models.Order]{
			client: client, kind: "order", prefix: models.OrderKeyPrefix, index: models.AllOrdersKey,
			ttl: cfg.OrderTTL, idOf: func(o *models.Order) string { return o.ID },
		},
	}
}

func (s *RedisStore) SaveTurf(ctx context.Context, turf *models.Turf) error {
	return s.turfs.save(ctx, turf)
}

func (s *RedisStore) GetTurf(ctx context.Context, id string) (*models.Turf, error) {
	return s.turfs.get(ctx, id)
}

func (s *RedisStore) GetAllTurfs(ctx context.Context) ([]*models.Turf, error) {
	return s.turfs.getAll(ctx)
}

func (s *RedisStore) DeleteTurf(ctx context.Context, id string) error {
	return s.turfs.delete(ctx, id)
}

func (s *RedisStore) SaveBooking(ctx context.Context, booking *models.Booking) error {
	return s.bookings.save(ctx, booking)
}

func (s *RedisStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.bookings.get(ctx, id)
}

func (s *RedisStore) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.bookings.getAll(ctx)
}

func (s *RedisStore) DeleteBooking(ctx context.Context, id string) error {
	return s.bookings.delete(ctx, id)
}

func (s *RedisStore) SaveEquipment(ctx context.Context, equipment *models.Equipment) error {
	return s.equipment.save(ctx, equipment)
}

func (s *RedisStore) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	return s.equipment.get(ctx, id)
}

func (s *RedisStore) GetAllEquipment(ctx context.Context) ([]*models.Equipment, error) {
	return s.equipment.getAll(ctx)
}

func (s *RedisStore) DeleteEquipment(ctx context.Context, id string) error {
	return s.equipment.delete(ctx, id)
}

func (s *RedisStore) SaveOrder(ctx context.Context, order *models.Order) error {
	return s.orders.save(ctx, order)
}

func (s *RedisStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.get(ctx, id)
}

func (s *RedisStore) GetAllOrders(ctx context.Context) ([]*models.Order, error) {
	return s.orders.getAll(ctx)
}

func (s *RedisStore) DeleteOrder(ctx context.Context, id string) error {
	return s.orders.delete(ctx, id)
}

// Ping проверяет соединение с Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return storeError("ping", errNilClient)
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
