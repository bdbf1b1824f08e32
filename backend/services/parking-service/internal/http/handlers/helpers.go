package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"parkledger/backend/services/parking-service/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps engine errors onto HTTP statuses. The body carries the
// same text the gate displays.
func writeServiceError(w http.ResponseWriter, err error) {
	message := service.UserMessage(err, "")
	var gateErr *service.GateError
	if errors.As(err, &gateErr) {
		message = gateErr.Message
	}
	writeError(w, statusFor(err), message)
}

func statusFor(err error) int {
	var skew *service.ClockSkewError
	switch {
	case errors.Is(err, service.ErrInvalidPlate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &skew):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
