package convert

import (
	"encoding/json"

	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// EndpointToCore rebuilds the endpoint key stored in a row.
func EndpointToCore(e model.Endpoint) core.EndpointKey {
	switch core.KeyKind(e.Kind) {
	case core.KeyStructural:
		return core.StructuralKey(core.NodeHandle{ID: e.NodeID, Version: e.NodeVersion})
	case core.KeySynthetic:
		return core.EndpointKey{Kind: core.KeySynthetic, ID: e.SyntheticID}
	default:
		return core.EndpointKey{}
	}
}

// SessionToCore converts a GORM Session to a core.Session. A style that
// fails to decode falls back to the default style.
func SessionToCore(s model.Session) core.Session {
	style := core.DefaultStyle()
	if len(s.Style) > 0 {
		var decoded core.Style
		if err := json.Unmarshal(s.Style, &decoded); err == nil {
			style = decoded
		}
	}
	out := core.Session{
		ID:               s.ID,
		Name:             s.Name,
		Mode:             s.Mode,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
		Style:            style,
	}
	if s.EndTime != nil {
		out.EndTime = *s.EndTime
	}
	return out
}

// BundleEventToCore converts a GORM BundleEvent to a core.BundleRecord.
func BundleEventToCore(e model.BundleEvent) core.BundleRecord {
	return core.BundleRecord{
		Key:       EndpointToCore(e.Endpoint),
		Name:      e.Name,
		Event:     core.BundleEvent(e.Event),
		Time:      e.Time,
		HasMarker: e.HasMarker,
	}
}

// TrailSampleToCore converts a GORM TrailSample to a core.TrailSample.
func TrailSampleToCore(s model.TrailSample) core.TrailSample {
	return core.TrailSample{
		Key:      EndpointToCore(s.Endpoint),
		Time:     s.Time,
		Position: core.Position3D{X: s.X, Y: s.Y, Z: s.Z},
		Speed:    s.Speed,
		Width:    s.Width,
		Emitting: s.Emitting,
	}
}
