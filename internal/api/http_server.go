package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"turfhub/internal/config"
	"turfhub/internal/domain"
	"turfhub/internal/logging"
	"turfhub/internal/metrics"
	"turfhub/internal/models"
	"turfhub/internal/service"

	"github.com/rs/zerolog"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ActivityLog is the read side of the activity journal.
type ActivityLog interface {
	ListRecent(ctx context.Context, limit int) ([]models.ActivityEntry, error)
}

// Services bundles what the HTTP handlers call into. Journal is optional.
type Services struct {
	Turfs     *service.TurfService
	Equipment *service.EquipmentService
	Seeder    *service.Seeder
	Store     Pinger
	Journal   ActivityLog
}

// HTTPServer exposes the turf and equipment API over JSON.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, logger: logging.Component(logger, "http")}

	mux := http.NewServeMux()
	srv.routes(mux)

	limiter := newRateLimiter(cfg.RateLimit)
	handler := srv.loggingMiddleware(limiter.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /activity", s.handleActivity)

	mux.HandleFunc("GET /turfs", s.handleListTurfs)
	mux.HandleFunc("POST /turfs", s.handleCreateTurf)
	mux.HandleFunc("GET /turfs/available", s.handleAvailableTurfs)
	mux.HandleFunc("GET /turfs/type/{type}", s.handleTurfsByType)
	mux.HandleFunc("GET /turfs/{id}", s.handleGetTurf)
	mux.HandleFunc("PUT /turfs/{id}", s.handleUpdateTurf)
	mux.HandleFunc("DELETE /turfs/{id}", s.handleDeleteTurf)
	mux.HandleFunc("PUT /turfs/{id}/availability", s.handleTurfAvailability)
	mux.HandleFunc("POST /turfs/init", s.handleSeedTurfs)

	mux.HandleFunc("POST /turfs/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /turfs/bookings", s.handleListBookings)
	mux.HandleFunc("GET /turfs/bookings/export", s.handleExportBookings)
	// /turfs/bookings/{id} и /turfs/{id}/bookings пересекаются в ServeMux
	mux.HandleFunc("GET /turfs/{first}/{second}", s.handleTurfSubresource)
	mux.HandleFunc("PUT /turfs/bookings/{id}/status", s.handleBookingStatus)
	mux.HandleFunc("PUT /turfs/bookings/{id}/payment", s.handleBookingPayment)
	mux.HandleFunc("DELETE /turfs/bookings/{id}", s.handleCancelBooking)

	mux.HandleFunc("GET /equipment", s.handleListEquipment)
	mux.HandleFunc("POST /equipment", s.handleCreateEquipment)
	mux.HandleFunc("GET /equipment/available", s.handleAvailableEquipment)
	mux.HandleFunc("GET /equipment/category/{category}", s.handleEquipmentByCategory)
	mux.HandleFunc("GET /equipment/{id}", s.handleGetEquipment)
	mux.HandleFunc("PUT /equipment/{id}", s.handleUpdateEquipment)
	mux.HandleFunc("DELETE /equipment/{id}", s.handleDeleteEquipment)
	mux.HandleFunc("PUT /equipment/{id}/stock", s.handleUpdateStock)
	mux.HandleFunc("POST /equipment/init", s.handleSeedEquipment)

	mux.HandleFunc("POST /equipment/orders", s.handleCreateOrder)
	mux.HandleFunc("GET /equipment/orders", s.handleListOrders)
	mux.HandleFunc("GET /equipment/orders/export", s.handleExportOrders)
	mux.HandleFunc("GET /equipment/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("PUT /equipment/orders/{id}/status", s.handleOrderStatus)
	mux.HandleFunc("PUT /equipment/orders/{id}/payment", s.handleOrderPayment)
	mux.HandleFunc("DELETE /equipment/orders/{id}", s.handleCancelOrder)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.svc.Journal == nil {
		writeError(w, http.StatusNotFound, "activity journal is disabled", "not_found")
		return
	}

	limit := models.DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeDomainError(w, r, fmt.Errorf("limit must be a positive integer: %w", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}

	entries, err := s.svc.Journal.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "invalid_argument":
		return http.StatusBadRequest
	case "conflict", "insufficient_stock", "invalid_transition", "busy":
		return http.StatusConflict
	case "store_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("kind", kind).Msg("request failed")
	}
	writeError(w, code, err.Error(), kind)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message, kind string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "kind": kind})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
