package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"turfhub/internal/domain"
	"turfhub/internal/events"
	"turfhub/internal/models"
	"turfhub/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTurf(t *testing.T, env *testEnv, id, turfType, price string) *models.Turf {
	t.Helper()
	turf := &models.Turf{
		ID:           id,
		Name:         "Ground " + id,
		Type:         turfType,
		Size:         "large",
		PricePerHour: decimal.RequireFromString(price),
		Available:    true,
	}
	require.NoError(t, env.turfs.CreateTurf(context.Background(), turf))
	return turf
}

func newBooking(turfID string, start time.Time, hours int) *models.Booking {
	return &models.Booking{
		TurfID:        turfID,
		CustomerName:  "Ivan",
		CustomerEmail: "ivan@example.com",
		CustomerPhone: "+7000",
		StartTime:     start,
		EndTime:       start.Add(time.Duration(hours) * time.Hour),
		Hours:         hours,
	}
}

func TestTurfService_TurfCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("CreateAssignsID", func(t *testing.T) {
		turf := &models.Turf{Name: "New", PricePerHour: decimal.NewFromInt(10)}
		require.NoError(t, env.turfs.CreateTurf(ctx, turf))
		assert.NotEmpty(t, turf.ID)

		got, err := env.turfs.GetTurf(ctx, turf.ID)
		require.NoError(t, err)
		assert.Equal(t, "New", got.Name)
	})

	t.Run("CreateValidation", func(t *testing.T) {
		err := env.turfs.CreateTurf(ctx, &models.Turf{Name: ""})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		err = env.turfs.CreateTurf(ctx, &models.Turf{Name: "x", PricePerHour: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := env.turfs.GetTurf(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateForcesPathID", func(t *testing.T) {
		seedTurf(t, env, "u1", "football", "40.00")
		update := &models.Turf{ID: "other", Name: "Renamed", PricePerHour: decimal.NewFromInt(45)}
		require.NoError(t, env.turfs.UpdateTurf(ctx, "u1", update))
		assert.Equal(t, "u1", update.ID)

		got, err := env.turfs.GetTurf(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)

		_, err = env.turfs.GetTurf(ctx, "other")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := env.turfs.UpdateTurf(ctx, "missing", &models.Turf{Name: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		seedTurf(t, env, "d1", "tennis", "10")
		require.NoError(t, env.turfs.DeleteTurf(ctx, "d1"))
		assert.ErrorIs(t, env.turfs.DeleteTurf(ctx, "d1"), domain.ErrNotFound)
	})
}

func TestTurfService_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedTurf(t, env, "1", "football", "50")
	seedTurf(t, env, "2", "Football", "60")
	seedTurf(t, env, "3", "tennis", "30")

	_, err := env.turfs.UpdateTurfAvailability(ctx, "2", false)
	require.NoError(t, err)

	byType, err := env.turfs.TurfsByType(ctx, "FOOTBALL")
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	available, err := env.turfs.AvailableTurfs(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "1", available[0].ID)
	assert.Equal(t, "3", available[1].ID)

	_, err = env.turfs.UpdateTurfAvailability(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurfService_CreateBooking(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	t.Run("PricesAndMarksTurf", func(t *testing.T) {
		env := newTestEnv(t)
		seedTurf(t, env, "1", "football", "50.00")

		booking := newBooking("1", start, 2)
		require.NoError(t, env.turfs.CreateBooking(ctx, booking))

		assert.NotEmpty(t, booking.ID)
		assert.True(t, booking.TotalAmount.Equal(decimal.NewFromInt(100)), booking.TotalAmount.String())
		assert.Equal(t, models.StatusPending, booking.Status)
		assert.Equal(t, models.PaymentPending, booking.PaymentStatus)
		assert.Equal(t, testNow, booking.BookingDate)

		turf, err := env.turfs.GetTurf(ctx, "1")
		require.NoError(t, err)
		assert.False(t, turf.Available)

		stored, err := env.turfs.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, "100.00", stored.TotalAmount.StringFixed(2))
		assert.Equal(t, []string{events.EventBookingCreated}, env.events.list())
	})

	t.Run("Validation", func(t *testing.T) {
		env := newTestEnv(t)
		seedTurf(t, env, "1", "football", "50.00")

		tests := []struct {
			name   string
			mutate func(b *models.Booking)
		}{
			{"missing turf id", func(b *models.Booking) { b.TurfID = "" }},
			{"missing customer", func(b *models.Booking) { b.CustomerName = " " }},
			{"missing email", func(b *models.Booking) { b.CustomerEmail = "" }},
			{"missing start", func(b *models.Booking) { b.StartTime = time.Time{} }},
			{"end before start", func(b *models.Booking) { b.EndTime = b.StartTime.Add(-time.Hour) }},
			{"empty range", func(b *models.Booking) { b.EndTime = b.StartTime }},
			{"start in past", func(b *models.Booking) {
				b.StartTime = testNow.Add(-time.Hour)
				b.EndTime = testNow.Add(time.Hour)
			}},
			{"start equals now", func(b *models.Booking) {
				b.StartTime = testNow
				b.EndTime = testNow.Add(time.Hour)
			}},
			{"zero hours", func(b *models.Booking) { b.Hours = 0 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := newBooking("1", start, 2)
				tt.mutate(b)
				assert.ErrorIs(t, env.turfs.CreateBooking(ctx, b), domain.ErrInvalidArgument)
			})
		}

		all, err := env.turfs.ListBookings(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("MissingTurf", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.turfs.CreateBooking(ctx, newBooking("nope", start, 1))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("OverlapConflicts", func(t *testing.T) {
		env := newTestEnv(t)
		seedTurf(t, env, "1", "football", "50.00")
		seedTurf(t, env, "2", "football", "50.00")

		require.NoError(t, env.turfs.CreateBooking(ctx, newBooking("1", start, 2)))

		overlapping := newBooking("1", start.Add(time.Hour), 2)
		assert.ErrorIs(t, env.turfs.CreateBooking(ctx, overlapping), domain.ErrConflict)

		// соседний слот и другая площадка не конфликтуют
		assert.NoError(t, env.turfs.CreateBooking(ctx, newBooking("1", start.Add(2*time.Hour), 1)))
		assert.NoError(t, env.turfs.CreateBooking(ctx, newBooking("2", start, 2)))
	})

	t.Run("ConfirmedConflicts", func(t *testing.T) {
		env := newTestEnv(t)
		seedTurf(t, env, "1", "football", "50.00")

		first := newBooking("1", start, 2)
		require.NoError(t, env.turfs.CreateBooking(ctx, first))
		_, err := env.turfs.UpdateBookingStatus(ctx, first.ID, models.StatusConfirmed)
		require.NoError(t, err)

		assert.ErrorIs(t, env.turfs.CreateBooking(ctx, newBooking("1", start, 1)), domain.ErrConflict)
	})

	t.Run("InactiveDoNotConflict", func(t *testing.T) {
		for _, status := range []string{models.StatusCancelled, models.StatusCompleted} {
			t.Run(status, func(t *testing.T) {
				env := newTestEnv(t)
				seedTurf(t, env, "1", "football", "50.00")

				first := newBooking("1", start, 2)
				require.NoError(t, env.turfs.CreateBooking(ctx, first))
				_, err := env.turfs.UpdateBookingStatus(ctx, first.ID, status)
				require.NoError(t, err)

				assert.NoError(t, env.turfs.CreateBooking(ctx, newBooking("1", start, 2)))
			})
		}
	})

	t.Run("ConcurrentSameSlot", func(t *testing.T) {
		env := newTestEnv(t)
		seedTurf(t, env, "1", "football", "50.00")

		const attempts = 8
		var wg sync.WaitGroup
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b := newBooking("1", start, 2)
				b.CustomerName = fmt.Sprintf("customer-%d", i)
				errs <- env.turfs.CreateBooking(ctx, b)
			}(i)
		}
		wg.Wait()
		close(errs)

		var ok, conflicts int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, attempts-1, conflicts)
	})
}

func TestTurfService_BookingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTurf(t, env, "1", "football", "50.00")
	seedTurf(t, env, "2", "tennis", "30.00")

	booking := newBooking("1", testNow.Add(48*time.Hour), 3)
	require.NoError(t, env.turfs.CreateBooking(ctx, booking))
	require.NoError(t, env.turfs.CreateBooking(ctx, newBooking("2", testNow.Add(48*time.Hour), 1)))

	t.Run("ByTurf", func(t *testing.T) {
		list, err := env.turfs.BookingsByTurf(ctx, "1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, booking.ID, list[0].ID)
	})

	t.Run("StatusValidation", func(t *testing.T) {
		_, err := env.turfs.UpdateBookingStatus(ctx, booking.ID, models.StatusShipped)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = env.turfs.UpdateBookingStatus(ctx, "missing", models.StatusConfirmed)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Payment", func(t *testing.T) {
		updated, err := env.turfs.UpdateBookingPaymentStatus(ctx, booking.ID, models.PaymentPaid)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)

		_, err = env.turfs.UpdateBookingPaymentStatus(ctx, booking.ID, "FREE")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Cancel", func(t *testing.T) {
		cancelled, err := env.turfs.CancelBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)

		turf, err := env.turfs.GetTurf(ctx, "1")
		require.NoError(t, err)
		assert.True(t, turf.Available)

		_, err = env.turfs.CancelBooking(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.Contains(t, env.events.list(), events.EventBookingCancelled)
	})

	t.Run("CancelWithDeletedTurf", func(t *testing.T) {
		b := newBooking("2", testNow.Add(96*time.Hour), 1)
		require.NoError(t, env.turfs.CreateBooking(ctx, b))
		require.NoError(t, env.turfs.DeleteTurf(ctx, "2"))

		cancelled, err := env.turfs.CancelBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, env.turfs.DeleteBooking(ctx, booking.ID))
		_, err := env.turfs.GetBooking(ctx, booking.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTurfService_RejectsExistingIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTurf(t, env, "1", "football", "50.00")
	seedTurf(t, env, "2", "tennis", "30.00")

	t.Run("Turf", func(t *testing.T) {
		err := env.turfs.CreateTurf(ctx, &models.Turf{ID: "1", Name: "Replacement", PricePerHour: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Equal(t, "conflict", domain.Kind(err))

		turf, err := env.turfs.GetTurf(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Ground 1", turf.Name)
	})

	t.Run("Booking", func(t *testing.T) {
		first := newBooking("1", testNow.Add(24*time.Hour), 2)
		require.NoError(t, env.turfs.CreateBooking(ctx, first))

		reused := newBooking("2", testNow.Add(24*time.Hour), 1)
		reused.ID = first.ID
		reused.CustomerName = "x"
		assert.ErrorIs(t, env.turfs.CreateBooking(ctx, reused), domain.ErrAlreadyExists)

		got, err := env.turfs.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "1", got.TurfID)
		assert.Equal(t, "Ivan", got.CustomerName)

		turf, err := env.turfs.GetTurf(ctx, "2")
		require.NoError(t, err)
		assert.True(t, turf.Available)
	})
}

func TestTurfService_CancelBookingBusyTurf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTurf(t, env, "1", "football", "50.00")

	booking := newBooking("1", testNow.Add(24*time.Hour), 1)
	require.NoError(t, env.turfs.CreateBooking(ctx, booking))

	unlock, err := env.locker.Lock(ctx, models.TurfKeyPrefix+"1")
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = env.turfs.CancelBooking(shortCtx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	// отмена не записана, пока площадка занята
	got, err := env.turfs.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	unlock()
	cancelled, err := env.turfs.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

// stalledSender blocks every Send until release is closed.
type stalledSender struct {
	release chan struct{}
	calls   chan int64
}

func (s *stalledSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.calls <- msg.ChatID
	}
	return tgbotapi.Message{}, nil
}

func TestTurfService_SlowNotifierDoesNotHoldTurfLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTurf(t, env, "1", "football", "50.00")

	sender := &stalledSender{release: make(chan struct{}), calls: make(chan int64, 4)}
	notifier := notify.NewTelegramNotifier(sender, []int64{7}, nil)
	notifier.Subscribe(env.bus)

	notifyCtx, stop := context.WithCancel(ctx)
	defer stop()
	go notifier.Start(notifyCtx)

	done := make(chan error, 1)
	go func() { done <- env.turfs.CreateBooking(ctx, newBooking("1", testNow.Add(24*time.Hour), 1)) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("CreateBooking waited for the telegram send")
	}

	// площадка свободна для следующего запроса, пока сообщение не ушло
	turf, err := env.turfs.UpdateTurfAvailability(ctx, "1", true)
	require.NoError(t, err)
	assert.True(t, turf.Available)

	close(sender.release)
	select {
	case chatID := <-sender.calls:
		assert.Equal(t, int64(7), chatID)
	case <-time.After(time.Second):
		t.Fatal("notification was not sent")
	}
}
