package service

import (
	"context"
	"errors"
	"fmt"
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

type TurfService struct {
	store    domain.Store
	locker   domain.Locker
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewTurfService(store domain.Store, locker domain.Locker, eventBus domain.EventPublisher, logger *zerolog.Logger) *TurfService {
	return &TurfService{
		store:    store,
		locker:   locker,
		eventBus: eventBus,
		logger:   logging.Component(logger, "turf_service"),
		now:      time.Now,
	}
}

func (s *TurfService) ListTurfs(ctx context.Context) ([]*models.Turf, error) {
	return s.store.GetAllTurfs(ctx)
}

func (s *TurfService) GetTurf(ctx context.Context, id string) (*models.Turf, error) {
	turf, err := s.store.GetTurf(ctx, id)
	if err != nil {
		return nil, err
	}
	if turf == nil {
		return nil, fmt.Errorf("turf %s: %w", id, domain.ErrNotFound)
	}
	return turf, nil
}

func validateTurf(turf *models.Turf) error {
	if strings.TrimSpace(turf.Name) == "" {
		return fmt.Errorf("turf name is required: %w", domain.ErrInvalidArgument)
	}
	if turf.PricePerHour.IsNegative() {
		return fmt.Errorf("turf price must not be negative: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *TurfService) CreateTurf(ctx context.Context, turf *models.Turf) error {
	if err := validateTurf(turf); err != nil {
		return err
	}
	if turf.ID == "" {
		turf.ID = uuid.NewString()
	}

	unlock, err := lockAll(ctx, s.locker, models.TurfKeyPrefix+turf.ID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.store.GetTurf(ctx, turf.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("turf %s: %w", turf.ID, domain.ErrAlreadyExists)
	}
	return s.store.SaveTurf(ctx, turf)
}

func (s *TurfService) UpdateTurf(ctx context.Context, id string, turf *models.Turf) error {
	if err := validateTurf(turf); err != nil {
		return err
	}

	unlock, err := lockAll(ctx, s.locker, models.TurfKeyPrefix+id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.GetTurf(ctx, id); err != nil {
		return err
	}
	turf.ID = id
	return s.store.SaveTurf(ctx, turf)
}

func (s *TurfService) DeleteTurf(ctx context.Context, id string) error {
	if _, err := s.GetTurf(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteTurf(ctx, id)
}

func (s *TurfService) AvailableTurfs(ctx context.Context) ([]*models.Turf, error) {
	return s.filterTurfs(ctx, func(t *models.Turf) bool { return t.Available })
}

func (s *TurfService) TurfsByType(ctx context.Context, turfType string) ([]*models.Turf, error) {
	turfType = strings.TrimSpace(turfType)
	return s.filterTurfs(ctx, func(t *models.Turf) bool { return strings.EqualFold(t.Type, turfType) })
}

func (s *TurfService) filterTurfs(ctx context.Context, keep func(*models.Turf) bool) ([]*models.Turf, error) {
	turfs, err := s.store.GetAllTurfs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Turf, 0, len(turfs))
	for _, t := range turfs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TurfService) UpdateTurfAvailability(ctx context.Context, id string, available bool) (*models.Turf, error) {
	unlock, err := lockAll(ctx, s.locker, models.TurfKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.setAvailability(ctx, id, available)
}

// setAvailability expects the caller to hold the turf lock.
func (s *TurfService) setAvailability(ctx context.Context, id string, available bool) (*models.Turf, error) {
	turf, err := s.GetTurf(ctx, id)
	if err != nil {
		return nil, err
	}
	turf.Available = available
	if err := s.store.SaveTurf(ctx, turf); err != nil {
		return nil, err
	}
	return turf, nil
}

func validateBooking(b *models.Booking, now time.Time) error {
	switch {
	case strings.TrimSpace(b.TurfID) == "":
		return fmt.Errorf("turf id is required: %w", domain.ErrInvalidArgument)
	case strings.TrimSpace(b.CustomerName) == "":
		return fmt.Errorf("customer name is required: %w", domain.ErrInvalidArgument)
	case strings.TrimSpace(b.CustomerEmail) == "":
		return fmt.Errorf("customer email is required: %w", domain.ErrInvalidArgument)
	case b.StartTime.IsZero() || b.EndTime.IsZero():
		return fmt.Errorf("start and end time are required: %w", domain.ErrInvalidArgument)
	case !b.StartTime.Before(b.EndTime):
		return fmt.Errorf("start time must be before end time: %w", domain.ErrInvalidArgument)
	case !b.StartTime.After(now):
		return fmt.Errorf("start time must be in the future: %w", domain.ErrInvalidArgument)
	case b.Hours <= 0:
		return fmt.Errorf("hours must be positive: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// CreateBooking validates the slot, prices it and marks the turf unavailable.
// The overlap check and the save run under the turf lock.
func (s *TurfService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := s.now()
	if err := validateBooking(booking, now); err != nil {
		return err
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	unlock, err := lockAll(ctx, s.locker, models.TurfKeyPrefix+booking.TurfID, models.BookingKeyPrefix+booking.ID)
	if err != nil {
		return err
	}
	defer unlock()

	turf, err := s.GetTurf(ctx, booking.TurfID)
	if err != nil {
		return err
	}

	previous, err := s.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return err
	}
	if previous != nil {
		return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrAlreadyExists)
	}

	// Проверяем пересечения с активными бронями
	existing, err := s.store.GetAllBookings(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.TurfID != booking.TurfID || !other.IsActive() {
			continue
		}
		if other.Overlaps(booking.StartTime, booking.EndTime) {
			return fmt.Errorf("turf %s already booked by %s: %w", booking.TurfID, other.ID, domain.ErrConflict)
		}
	}

	booking.BookingDate = now
	booking.Status = models.StatusPending
	booking.PaymentStatus = models.PaymentPending
	booking.TotalAmount = models.LineTotal(turf.PricePerHour, booking.Hours)

	if err := s.store.SaveBooking(ctx, booking); err != nil {
		return err
	}

	turf.Available = false
	if err := s.store.SaveTurf(ctx, turf); err != nil {
		return err
	}

	metrics.IncBookingCreated()
	s.publishEvent(events.EventBookingCreated, booking, turf.Name)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("turf_id", booking.TurfID).
		Time("start", booking.StartTime).
		Msg("booking created")

	return nil
}

func (s *TurfService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return booking, nil
}

func (s *TurfService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.store.GetAllBookings(ctx)
}

func (s *TurfService) BookingsByTurf(ctx context.Context, turfID string) ([]*models.Booking, error) {
	bookings, err := s.store.GetAllBookings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Booking, 0)
	for _, b := range bookings {
		if b.TurfID == turfID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *TurfService) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	if !models.IsBookingStatus(status) {
		return nil, fmt.Errorf("unknown booking status %q: %w", status, domain.ErrInvalidArgument)
	}

	booking, err := s.mutateBooking(ctx, id, func(b *models.Booking) { b.Status = status })
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingStatusChanged, booking, "")
	return booking, nil
}

func (s *TurfService) UpdateBookingPaymentStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	if !models.IsPaymentStatus(status) {
		return nil, fmt.Errorf("unknown payment status %q: %w", status, domain.ErrInvalidArgument)
	}

	booking, err := s.mutateBooking(ctx, id, func(b *models.Booking) { b.PaymentStatus = status })
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingStatusChanged, booking, "")
	return booking, nil
}

func (s *TurfService) mutateBooking(ctx context.Context, id string, apply func(*models.Booking)) (*models.Booking, error) {
	unlock, err := lockAll(ctx, s.locker, models.BookingKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(booking)
	if err := s.store.SaveBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking frees the turf without checking for its other active bookings.
func (s *TurfService) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	// turfId брони не меняется, блокируем бронь и площадку вместе
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := lockAll(ctx, s.locker, models.BookingKeyPrefix+id, models.TurfKeyPrefix+current.TurfID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	if err := s.store.SaveBooking(ctx, booking); err != nil {
		return nil, err
	}

	var turfName string
	turf, err := s.setAvailability(ctx, booking.TurfID, true)
	switch {
	case err == nil:
		turfName = turf.Name
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Warn().Str("booking_id", id).Str("turf_id", booking.TurfID).Msg("cancelled booking references missing turf")
	default:
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, booking, turfName)
	return booking, nil
}

func (s *TurfService) DeleteBooking(ctx context.Context, id string) error {
	if _, err := s.GetBooking(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteBooking(ctx, id)
}

func (s *TurfService) publishEvent(eventType string, booking *models.Booking, turfName string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		TurfID:        booking.TurfID,
		TurfName:      turfName,
		CustomerName:  booking.CustomerName,
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		TotalAmount:   booking.TotalAmount,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
