package model

import (
	"encoding/json"
	"math"
	"time"
)

// Instant is a point in time in milliseconds since the Unix epoch.
type Instant int64

// InvalidInstant marks a timestamp that could not be parsed.
const InvalidInstant Instant = math.MinInt64

// InstantOf converts t to an Instant. The zero time is invalid.
func InstantOf(t time.Time) Instant {
	if t.IsZero() {
		return InvalidInstant
	}
	return Instant(t.UnixMilli())
}

// Valid reports whether i holds a parsed instant.
func (i Instant) Valid() bool {
	return i != InvalidInstant
}

// Time converts i back to a UTC time. Invalid instants return the zero time.
func (i Instant) Time() time.Time {
	if !i.Valid() {
		return time.Time{}
	}
	return time.UnixMilli(int64(i)).UTC()
}

// Sub returns i - j in milliseconds.
func (i Instant) Sub(j Instant) int64 {
	return int64(i) - int64(j)
}

// MarshalJSON encodes invalid instants as null and valid ones as RFC 3339.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(i.Time().Format(time.RFC3339Nano))
}
