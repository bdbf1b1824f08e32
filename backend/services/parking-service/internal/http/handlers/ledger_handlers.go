package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"parkledger/backend/services/parking-service/internal/models"
	"parkledger/backend/services/parking-service/internal/receipt"
	"parkledger/backend/services/parking-service/internal/service"
)

// Ledger is the read side of the sessions service.
type Ledger interface {
	Occupancy(ctx context.Context, now time.Time) (*service.Occupancy, error)
	History(ctx context.Context, limit int) ([]models.ParkingSession, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// NewPresentHandler returns GET /parking/present handler.
func NewPresentHandler(ledger Ledger) http.HandlerFunc {
	type response struct {
		Present       int                     `json:"present"`
		DurationHours int64                   `json:"duration_hours"`
		Message       string                  `json:"message"`
		Vehicles      []models.PresentVehicle `json:"vehicles"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		occ, err := ledger.Occupancy(r.Context(), time.Now())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{
			Present:       len(occ.Vehicles),
			DurationHours: occ.TotalHours(),
			Message:       receipt.DurationMessage(occ.TotalHours()),
			Vehicles:      occ.Vehicles,
		})
	}
}

// NewSessionsHandler returns GET /parking/sessions handler.
func NewSessionsHandler(ledger Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(parsed, maxHistoryLimit)
		}

		sessions, err := ledger.History(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}
