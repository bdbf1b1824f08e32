package ws

import (
	"encoding/json"

	"parkledger/backend/services/parking-service/internal/receipt"
	"parkledger/backend/services/parking-service/internal/service"
)

// Message types pushed to boards.
const (
	TypeOccupancy = "occupancy"
	TypeInform    = "inform"
	TypeAnnounce  = "announce"
)

// Message is the JSON frame a board receives.
type Message struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	Present       *int   `json:"present,omitempty"`
	DurationHours *int64 `json:"duration_hours,omitempty"`
}

func occupancyMessage(occ *service.Occupancy) Message {
	present := len(occ.Vehicles)
	hours := occ.TotalHours()
	return Message{
		Type:          TypeOccupancy,
		Message:       receipt.DurationMessage(hours),
		Present:       &present,
		DurationHours: &hours,
	}
}

func encode(m Message) []byte {
	data, _ := json.Marshal(m)
	return data
}
