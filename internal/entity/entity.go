package entity

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Base carries the lifecycle columns every entity has.
type Base struct {
	ID               int64     `json:"id"`
	EntityVersion    int       `json:"entityVersion"`
	EntityCreateDate Timestamp `json:"entityCreateDate"`
	EntityModifyDate Timestamp `json:"entityModifyDate"`
}

// Timestamp is a millisecond-precision instant that serialises as epoch
// milliseconds. The zero value serialises as null.
type Timestamp int64

// Now returns the current instant truncated to milliseconds.
func Now() Timestamp {
	return At(time.Now())
}

// At converts t to a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the instant as a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Millis returns the epoch millisecond value.
func (t Timestamp) Millis() int64 {
	return int64(t)
}

// IsZero reports whether the timestamp was never set.
func (t Timestamp) IsZero() bool {
	return t == 0
}

// MarshalJSON writes epoch milliseconds, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, int64(t), 10), nil
}

// UnmarshalJSON accepts epoch milliseconds or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be epoch milliseconds: %w", err)
	}
	*t = Timestamp(ms)
	return nil
}

// StampCreated sets the lifecycle fields for a new row: version 1 and both
// dates at now.
func (b *Base) StampCreated(now Timestamp) {
	b.EntityVersion = 1
	b.EntityCreateDate = now
	b.EntityModifyDate = now
}
