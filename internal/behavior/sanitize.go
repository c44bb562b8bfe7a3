package behavior

import (
	"log/slog"

	"github.com/OCAP2/tiptrails/internal/registry"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// sanitize replaces inconsistent values with the built-in defaults.
func sanitize(cfg Config, logger *slog.Logger) Config {
	def := core.DefaultStyle()
	s := &cfg.Style

	fix := func(name string, bad bool, apply func()) {
		if bad {
			logger.Warn("Invalid setting, using default", "setting", name)
			apply()
		}
	}
	fix("trail.lifetime", s.Lifetime <= 0, func() { s.Lifetime = def.Lifetime })
	fix("trail.startWidth", s.StartWidth < 0, func() { s.StartWidth = def.StartWidth })
	fix("trail.endWidth", s.EndWidth < 0, func() { s.EndWidth = def.EndWidth })
	fix("trail.minVertexDistance", s.MinVertexDistance < 0, func() { s.MinVertexDistance = def.MinVertexDistance })
	fix("trail.globalWidthScale", s.WidthScale <= 0, func() { s.WidthScale = def.WidthScale })
	fix("marker.size", s.MarkerEnabled && s.MarkerSize <= 0, func() { s.MarkerSize = def.MarkerSize })
	if s.Gradient.Empty() {
		s.Gradient = core.DefaultGradient()
	}

	rdef := registry.DefaultConfig()
	r := &cfg.Registry
	fix("scan.rescanInterval", r.RescanInterval < 0, func() { r.RescanInterval = rdef.RescanInterval })
	fix("scan.minEndpoints", r.MinEndpoints < 0, func() { r.MinEndpoints = rdef.MinEndpoints })
	fix("trail.pixelWidth", r.WidthInPixels && r.PixelWidth <= 0, func() { r.PixelWidth = rdef.PixelWidth })
	fix("provider.unitScale", r.Mode == registry.ModeProvider && r.UnitScale <= 0, func() { r.UnitScale = rdef.UnitScale })
	fix("provider.speedMax", r.Width.SpeedMax < r.Width.SpeedMin, func() { r.Width = rdef.Width })
	return cfg
}
