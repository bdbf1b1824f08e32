package models

import "time"

// ParkingSession is one vehicle visit. It is open until ExitTime and AmountDue are set.
type ParkingSession struct {
	ID           int64      `db:"id" json:"id"`
	LicensePlate string     `db:"license_plate" json:"license_plate"`
	EntryTime    time.Time  `db:"entry_time" json:"entry_time"`
	ExitTime     *time.Time `db:"exit_time" json:"exit_time,omitempty"`
	AmountDue    *int64     `db:"amount_due" json:"amount_due,omitempty"`
}

// IsOpen reports whether the vehicle is still on the premises.
func (s ParkingSession) IsOpen() bool {
	return s.ExitTime == nil
}

// PresentVehicle is the cached view of an open session.
type PresentVehicle struct {
	SessionID    int64     `json:"session_id"`
	LicensePlate string    `json:"license_plate"`
	EntryTime    time.Time `json:"entry_time"`
}
