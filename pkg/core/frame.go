// pkg/core/frame.go
package core

import "time"

// Record is a single hand or finger record from a tracking source whose
// schema is not controlled by this module. Field returns the raw value for a
// named field, if present.
type Record interface {
	Field(name string) (any, bool)
}

// Chirality is the handedness of a tracked hand.
type Chirality uint8

const (
	ChiralityUnknown Chirality = iota
	ChiralityLeft
	ChiralityRight
)

func (c Chirality) String() string {
	switch c {
	case ChiralityLeft:
		return "left"
	case ChiralityRight:
		return "right"
	default:
		return "unknown"
	}
}

// Frame is one snapshot from the tracking provider.
type Frame struct {
	ID        int64
	Timestamp time.Time
	Hands     []Record
}
