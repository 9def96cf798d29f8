package repository

import (
	"context"
	"testing"
	"time"

	"turfhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := testStoreConfig()
	cfg.BookingTTL = time.Hour
	store := newMemoryStore(cfg, clock)
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		booking := &models.Booking{ID: "b1", TurfID: "1", Status: models.StatusPending}
		require.NoError(t, store.SaveBooking(ctx, booking))

		got, err := store.GetBooking(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "1", got.TurfID)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		got, err := store.GetBooking(ctx, "b1")
		require.NoError(t, err)
		got.Status = models.StatusCancelled

		again, err := store.GetBooking(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, again.Status)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Hour)

		got, err := store.GetBooking(ctx, "b1")
		require.NoError(t, err)
		assert.Nil(t, got)

		all, err := store.GetAllBookings(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.SaveEquipment(ctx, &models.Equipment{ID: "e1"}))
		require.NoError(t, store.DeleteEquipment(ctx, "e1"))

		got, err := store.GetEquipment(ctx, "e1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetAllSorted", func(t *testing.T) {
		require.NoError(t, store.SaveTurf(ctx, &models.Turf{ID: "2"}))
		require.NoError(t, store.SaveTurf(ctx, &models.Turf{ID: "1"}))

		all, err := store.GetAllTurfs(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "1", all[0].ID)
		assert.Equal(t, "2", all[1].ID)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
