package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// StoredTimeLayout is the text layout of entry_time and exit_time columns.
// Microsecond precision, no zone: values are wall-clock time in the store's location.
const StoredTimeLayout = "2006-01-02 15:04:05.000000"

// parseLayout accepts any fractional-second precision, including none.
const parseLayout = "2006-01-02 15:04:05"

func formatStoredTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(StoredTimeLayout)
}

func parseStoredTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(parseLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse stored time %q: %w", value, err)
	}
	return t, nil
}

func parseNullableTime(value sql.NullString, loc *time.Location) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseStoredTime(value.String, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// WallClock returns the reading of t on the store's wall clock, expressed in UTC.
// Differences between WallClock values match what the stored text shows, also
// across daylight-saving changes.
func (r *SessionRepository) WallClock(t time.Time) time.Time {
	return wallClock(t, r.loc)
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc).Truncate(time.Microsecond)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
