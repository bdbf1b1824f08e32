package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"parkledger/backend/services/parking-service/internal/receipt"
	"parkledger/backend/services/parking-service/internal/service"
)

// Gate is the part of the gate service exposed over HTTP.
type Gate interface {
	Entry(ctx context.Context, in service.GateInput) (*service.EntryOutcome, error)
	Exit(ctx context.Context, in service.GateInput) (*service.ExitOutcome, error)
	Payment(ctx context.Context) error
	Receipt(ctx context.Context, sessionID int64, format receipt.Format) (*receipt.Document, error)
}

const maxImageBytes = 8 << 20

type gateRequest struct {
	Plate       string `json:"plate"`
	ImageBase64 string `json:"image_base64"`
}

func decodeGateRequest(w http.ResponseWriter, r *http.Request) (service.GateInput, bool) {
	var req gateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes*2)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return service.GateInput{}, false
	}

	in := service.GateInput{Plate: req.Plate}
	if raw := strings.TrimSpace(req.ImageBase64); raw != "" {
		// data:image/jpeg;base64,<payload>
		if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i >= 0 {
			raw = raw[i+1:]
		}
		image, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
			return service.GateInput{}, false
		}
		if len(image) > maxImageBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return service.GateInput{}, false
		}
		in.Image = image
	}
	return in, true
}

// NewEntryHandler handles POST /parking/entry.
func NewEntryHandler(gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeGateRequest(w, r)
		if !ok {
			return
		}
		out, err := gate.Entry(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// NewExitHandler handles POST /parking/exit.
func NewExitHandler(gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeGateRequest(w, r)
		if !ok {
			return
		}
		out, err := gate.Exit(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// NewPaymentHandler handles POST /parking/payment.
func NewPaymentHandler(gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := gate.Payment(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewReceiptHandler handles GET /parking/sessions/{id}/receipt?format=digital|manual.
// Accept: image/png returns the bare QR image, Accept: text/plain the manual slip.
func NewReceiptHandler(gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		format, err := receipt.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "format must be digital or manual")
			return
		}

		doc, err := gate.Receipt(r.Context(), id, format)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		accept := r.Header.Get("Accept")
		if format == receipt.FormatDigital && len(doc.Image) > 0 && strings.Contains(accept, "image/png") {
			w.Header().Set("Content-Type", doc.ContentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(doc.Image)
			return
		}
		if format == receipt.FormatManual && strings.Contains(accept, "text/plain") {
			w.Header().Set("Content-Type", doc.ContentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(doc.Body))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}
