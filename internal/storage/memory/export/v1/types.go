// Package v1 contains the v1 JSON export format for recorded sessions.
package v1

import "github.com/OCAP2/tiptrails/pkg/core"

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion    int        `json:"formatVersion"`
	ExtensionVersion string     `json:"extensionVersion"`
	SessionID        string     `json:"sessionId"`
	SessionName      string     `json:"sessionName"`
	Mode             string     `json:"mode"`
	StartTime        string     `json:"startTime"`
	EndTime          string     `json:"endTime,omitempty"`
	Duration         float64    `json:"duration"` // seconds
	Style            core.Style `json:"style"`
	Endpoints        []Endpoint `json:"endpoints"`
}

// Endpoint is one tracked tip with its lifecycle and samples.
//
// Events rows are [offset, event]; Samples rows are
// [offset, x, y, z, speed, width, emitting]. Offsets are seconds since
// StartTime and emitting is 0 or 1.
type Endpoint struct {
	Key       string  `json:"key"`
	Kind      string  `json:"kind"`
	Name      string  `json:"name,omitempty"`
	HasMarker bool    `json:"hasMarker"`
	Length    float64 `json:"length"`
	Events    [][]any `json:"events"`
	Samples   [][]any `json:"samples"`
}
