package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrNegativeDuration is returned by Fee for durations below zero.
var ErrNegativeDuration = errors.New("tariff: negative duration")

// Tariff is the tiered hourly price list. A stay of up to IncludedHours costs
// BaseAmount; each further whole hour adds HourlyRate. Partial hours past the
// threshold are not charged until they complete.
type Tariff struct {
	BaseAmount    int64
	IncludedHours int64
	HourlyRate    int64
}

// DefaultTariff is 40 for the first three hours and 10 per completed hour after.
func DefaultTariff() Tariff {
	return Tariff{
		BaseAmount:    40,
		IncludedHours: 3,
		HourlyRate:    10,
	}
}

// Validate rejects tariffs that could produce negative or decreasing fees.
func (t Tariff) Validate() error {
	if t.BaseAmount < 0 || t.IncludedHours < 0 || t.HourlyRate < 0 {
		return fmt.Errorf("tariff: values must be non-negative, got base=%d hours=%d rate=%d",
			t.BaseAmount, t.IncludedHours, t.HourlyRate)
	}
	return nil
}

// Fee returns the amount due for a stay of d.
func (t Tariff) Fee(d time.Duration) (int64, error) {
	if d < 0 {
		return 0, ErrNegativeDuration
	}
	if d <= time.Duration(t.IncludedHours)*time.Hour {
		return t.BaseAmount, nil
	}
	wholeHours := int64(d / time.Hour)
	return t.BaseAmount + t.HourlyRate*(wholeHours-t.IncludedHours), nil
}

// MinimumCharge is what any stay costs, including a zero-length one.
func (t Tariff) MinimumCharge() int64 {
	return t.BaseAmount
}
