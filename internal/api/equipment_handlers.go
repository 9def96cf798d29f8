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

func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Equipment.ListEquipment(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	equipment, err := s.svc.Equipment.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

func (s *HTTPServer) handleAvailableEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Equipment.AvailableEquipment(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleEquipmentByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Equipment.EquipmentByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var equipment models.Equipment
	if err := decodeJSON(r, &equipment); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Equipment.CreateEquipment(r.Context(), &equipment); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, equipment)
}

func (s *HTTPServer) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	var equipment models.Equipment
	if err := decodeJSON(r, &equipment); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Equipment.UpdateEquipment(r.Context(), r.PathValue("id"), &equipment); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

func (s *HTTPServer) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Equipment.DeleteEquipment(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	delta, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		s.writeDomainError(w, r, fmt.Errorf("quantity must be an integer: %w", domain.ErrInvalidArgument))
		return
	}
	equipment, err := s.svc.Equipment.UpdateStock(r.Context(), r.PathValue("id"), delta)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

func (s *HTTPServer) handleSeedEquipment(w http.ResponseWriter, r *http.Request) {
	inserted, err := s.svc.Seeder.SeedEquipment(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": inserted})
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := decodeJSON(r, &order); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.svc.Equipment.CreateOrder(r.Context(), &order); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.Equipment.ListOrders(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Equipment.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Equipment.UpdateOrderStatus(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleOrderPayment(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Equipment.UpdateOrderPaymentStatus(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Equipment.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.Equipment.ListOrders(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeXLSX(w, fmt.Sprintf("orders_%s.xlsx", time.Now().Format("2006-01-02")))
	if err := export.WriteOrders(w, orders); err != nil {
		s.logger.Error().Err(err).Msg("orders export failed")
	}
}
