// Package convert maps between core types and the GORM schema.
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/OCAP2/tiptrails/internal/geo"
	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// CoreToEndpoint flattens an endpoint key into its columns.
func CoreToEndpoint(k core.EndpointKey) model.Endpoint {
	return model.Endpoint{
		Kind:        uint8(k.Kind),
		NodeID:      k.Node.ID,
		NodeVersion: k.Node.Version,
		SyntheticID: k.ID,
		Label:       k.String(),
	}
}

// CoreToSession converts a core.Session to a GORM Session.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		ID:               s.ID,
		Name:             s.Name,
		Mode:             s.Mode,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
		Style:            styleToJSON(s.Style),
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		out.EndTime = &end
	}
	return out
}

// CoreToBundleEvent converts a lifecycle record to a GORM BundleEvent.
func CoreToBundleEvent(sessionID string, r core.BundleRecord) model.BundleEvent {
	return model.BundleEvent{
		SessionID: sessionID,
		Time:      r.Time,
		Endpoint:  CoreToEndpoint(r.Key),
		Name:      r.Name,
		Event:     string(r.Event),
		HasMarker: r.HasMarker,
	}
}

// CoreToTrailSample converts a sample to a GORM TrailSample.
func CoreToTrailSample(sessionID string, s core.TrailSample) model.TrailSample {
	return model.TrailSample{
		SessionID: sessionID,
		Time:      s.Time,
		Endpoint:  CoreToEndpoint(s.Key),
		X:         s.Position.X,
		Y:         s.Position.Y,
		Z:         s.Position.Z,
		Speed:     s.Speed,
		Width:     s.Width,
		Emitting:  s.Emitting,
	}
}

// CoreToTrailPath builds the path row for one endpoint from its samples,
// which must be in time order.
func CoreToTrailPath(sessionID string, key core.EndpointKey, samples []core.TrailSample) (model.TrailPath, error) {
	pts := make([]core.Position3D, len(samples))
	for i, s := range samples {
		pts[i] = s.Position
	}
	wkb, err := geo.EncodePath(pts)
	if err != nil {
		return model.TrailPath{}, fmt.Errorf("path for %s: %w", key, err)
	}
	return model.TrailPath{
		SessionID: sessionID,
		Endpoint:  CoreToEndpoint(key),
		StartTime: samples[0].Time,
		EndTime:   samples[len(samples)-1].Time,
		Points:    len(pts),
		Length:    geo.PathLength(pts),
		Path:      wkb,
	}, nil
}

func styleToJSON(s core.Style) datatypes.JSON {
	data, err := json.Marshal(s)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}
