package grant

import "time"

// DefaultTTL is the grant window used when a request names neither an
// expiration time nor a duration.
const DefaultTTL = 7 * 24 * time.Hour

// ExpirationTime resolves the absolute expiry in epoch seconds.
// An explicit expiration wins over a duration in hours, which wins over
// the default window. Zero values count as not provided.
func ExpirationTime(now time.Time, explicit, durationHours int64, defaultTTL time.Duration) int64 {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	current := now.Unix()
	switch {
	case explicit != 0:
		return explicit
	case durationHours != 0:
		return current + durationHours*3600
	default:
		return current + int64(defaultTTL/time.Second)
	}
}
