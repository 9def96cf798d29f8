package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"turfhub/internal/domain"
	"turfhub/internal/export"
	"turfhub/internal/models"
)

func (s *HTTPServer) handleListTurfs(w http.ResponseWriter, r *http.Request) {
	turfs, err := s.svc.Turfs.ListTurfs(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turfs)
}

func (s *HTTPServer) handleGetTurf(w http.ResponseWriter, r *http.Request) {
	turf, err := s.svc.Turfs.GetTurf(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turf)
}

func (s *HTTPServer) handleAvailableTurfs(w http.ResponseWriter, r *http.Request) {
	turfs, err := s.svc.Turfs.AvailableTurfs(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turfs)
}

func (s *HTTPServer) handleTurfsByType(w http.ResponseWriter, r *http.Request) {
	turfs, err := s.svc.Turfs.TurfsByType(r.Context(), r.PathValue("type"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turfs)
}

func (s *HTTPServer) handleCreateTurf(w http.ResponseWriter, r *http.Request) {
	var turf models.Turf
	if err := decodeJSON(r, &turf); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Turfs.CreateTurf(r.Context(), &turf); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, turf)
}

func (s *HTTPServer) handleUpdateTurf(w http.ResponseWriter, r *http.Request) {
	var turf models.Turf
	if err := decodeJSON(r, &turf); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Turfs.UpdateTurf(r.Context(), r.PathValue("id"), &turf); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turf)
}

func (s *HTTPServer) handleDeleteTurf(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Turfs.DeleteTurf(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleTurfAvailability(w http.ResponseWriter, r *http.Request) {
	available, err := strconv.ParseBool(r.URL.Query().Get("available"))
	if err != nil {
		s.writeDomainError(w, r, fmt.Errorf("available must be true or false: %w", domain.ErrInvalidArgument))
		return
	}
	turf, err := s.svc.Turfs.UpdateTurfAvailability(r.Context(), r.PathValue("id"), available)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turf)
}

func (s *HTTPServer) handleSeedTurfs(w http.ResponseWriter, r *http.Request) {
	inserted, err := s.svc.Seeder.SeedTurfs(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": inserted})
}

// handleTurfSubresource serves GET /turfs/bookings/{id} and GET /turfs/{id}/bookings.
func (s *HTTPServer) handleTurfSubresource(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "bookings":
		booking, err := s.svc.Turfs.GetBooking(r.Context(), second)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	case second == "bookings":
		bookings, err := s.svc.Turfs.BookingsByTurf(r.Context(), first)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bookings)
	default:
		writeError(w, http.StatusNotFound, "not found", "not_found")
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var booking models.Booking
	if err := decodeJSON(r, &booking); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Turfs.CreateBooking(r.Context(), &booking); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Turfs.ListBookings(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Turfs.UpdateBookingStatus(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingPayment(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Turfs.UpdateBookingPaymentStatus(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Turfs.CancelBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Turfs.ListBookings(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeXLSX(w, fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02")))
	if err := export.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("bookings export failed")
	}
}

func writeXLSX(w http.ResponseWriter, fileName string) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
}
