package service

import (
	"sync"
	"testing"
	"time"

	"turfhub/internal/config"
	"turfhub/internal/events"
	"turfhub/internal/models"
	"turfhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func (r *recordedEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type testEnv struct {
	store     *repository.RedisStore
	turfs     *TurfService
	equipment *EquipmentService
	events    *recordedEvents
	bus       *events.EventBus
	locker    *repository.MemoryLocker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewRedisStore(client, config.StoreConfig{
		TurfTTL:      models.DefaultCatalogTTL,
		BookingTTL:   models.DefaultTransactionTTL,
		EquipmentTTL: models.DefaultCatalogTTL,
		OrderTTL:     models.DefaultTransactionTTL,
	})
	locker := repository.NewMemoryLocker(5 * time.Second)

	recorded := &recordedEvents{}
	bus := events.NewEventBus()
	bus.SubscribeAll(recorded.handle)

	logger := zerolog.Nop()
	turfs := NewTurfService(store, locker, bus, &logger)
	turfs.now = func() time.Time { return testNow }
	equipment := NewEquipmentService(store, locker, bus, &logger)
	equipment.now = func() time.Time { return testNow }

	return &testEnv{store: store, turfs: turfs, equipment: equipment, events: recorded, bus: bus, locker: locker}
}
