// Package streaming describes the tracking service WebSocket protocol: the
// handshake the service sends, the frames it streams and the control
// messages a client may send back.
package streaming

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DefaultURL is the local tracking service endpoint.
const DefaultURL = "ws://127.0.0.1:6437/v7.json"

// ProtocolVersion is the JSON protocol revision spoken by this client.
const ProtocolVersion = 7

// Kind classifies an incoming message.
type Kind int

const (
	KindUnknown Kind = iota
	KindVersion
	KindFrame
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindFrame:
		return "frame"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// VersionMessage is the first message the service sends after connecting.
type VersionMessage struct {
	ServiceVersion string `json:"serviceVersion"`
	Version        int    `json:"version"`
}

// EventMessage carries service events such as device attach/detach.
type EventMessage struct {
	Event struct {
		Type  string          `json:"type"`
		State json.RawMessage `json:"state"`
	} `json:"event"`
}

// ControlMessage toggles service behaviour for this client. Unset fields are
// omitted from the wire.
type ControlMessage struct {
	Focused        *bool `json:"focused,omitempty"`
	Background     *bool `json:"background,omitempty"`
	OptimizeHMD    *bool `json:"optimizeHMD,omitempty"`
	EnableGestures *bool `json:"enableGestures,omitempty"`
}

// Focused asks the service to stream frames to this client.
func Focused(on bool) ControlMessage {
	return ControlMessage{Focused: &on}
}

// Background asks the service to keep streaming while unfocused.
func Background(on bool) ControlMessage {
	return ControlMessage{Background: &on}
}

// Classify inspects raw without a full decode.
func Classify(raw []byte) Kind {
	if !gjson.ValidBytes(raw) {
		return KindUnknown
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return KindUnknown
	}
	switch {
	case res.Get("hands").Exists() || res.Get("pointables").Exists():
		return KindFrame
	case res.Get("event").Exists():
		return KindEvent
	case res.Get("serviceVersion").Exists() || res.Get("version").Exists():
		return KindVersion
	default:
		return KindUnknown
	}
}
