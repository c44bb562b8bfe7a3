package v1

import (
	"math"
	"sort"
	"time"

	"github.com/OCAP2/tiptrails/internal/geo"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Build creates an Export from a recording. Endpoints are ordered by first
// appearance, ties broken by key.
func Build(rec *core.Recording) Export {
	s := rec.Session
	export := Export{
		FormatVersion:    FormatVersion,
		ExtensionVersion: s.ExtensionVersion,
		SessionID:        s.ID,
		SessionName:      s.Name,
		Mode:             s.Mode,
		StartTime:        s.StartTime.UTC().Format(time.RFC3339Nano),
		Style:            s.Style,
		Endpoints:        make([]Endpoint, 0),
	}
	if !s.EndTime.IsZero() {
		export.EndTime = s.EndTime.UTC().Format(time.RFC3339Nano)
		export.Duration = round(s.EndTime.Sub(s.StartTime).Seconds())
	}

	type group struct {
		first time.Time
		ep    *Endpoint
		path  []core.Position3D
	}
	groups := make(map[core.EndpointKey]*group)
	get := func(k core.EndpointKey, t time.Time) *group {
		g, ok := groups[k]
		if !ok {
			g = &group{first: t, ep: &Endpoint{
				Key:     k.String(),
				Kind:    k.Kind.String(),
				Events:  make([][]any, 0),
				Samples: make([][]any, 0),
			}}
			groups[k] = g
		}
		if t.Before(g.first) {
			g.first = t
		}
		return g
	}

	for _, b := range rec.Bundles {
		g := get(b.Key, b.Time)
		if b.Name != "" {
			g.ep.Name = b.Name
		}
		if b.Event == core.BundleCreated {
			g.ep.HasMarker = b.HasMarker
		}
		g.ep.Events = append(g.ep.Events, []any{offset(s.StartTime, b.Time), string(b.Event)})
	}

	for _, smp := range rec.Samples {
		g := get(smp.Key, smp.Time)
		p := smp.Position
		g.ep.Samples = append(g.ep.Samples, []any{
			offset(s.StartTime, smp.Time),
			round(p.X), round(p.Y), round(p.Z),
			round(smp.Speed), round(smp.Width),
			boolToInt(smp.Emitting),
		})
		g.path = append(g.path, p)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		g.ep.Length = round(geo.PathLength(g.path))
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].first.Equal(ordered[j].first) {
			return ordered[i].first.Before(ordered[j].first)
		}
		return ordered[i].ep.Key < ordered[j].ep.Key
	})
	for _, g := range ordered {
		export.Endpoints = append(export.Endpoints, *g.ep)
	}
	return export
}

func offset(start, t time.Time) float64 {
	return round(t.Sub(start).Seconds())
}

// round keeps six decimals, enough for micrometre positions.
func round(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
