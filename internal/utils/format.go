package utils

import "time"

const (
	DateOnly    = "2006-01-02"
	DateTimeSec = "2006-01-02 15:04:05"
)

// EpochUTC formats epoch seconds as a UTC DateTimeSec string with a " UTC"
// suffix.
func EpochUTC(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(DateTimeSec) + " UTC"
}

// TimeOrDash formats a time value using the given layout, or returns "-" if zero.
func TimeOrDash(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(layout)
}
