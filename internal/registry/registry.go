// Package registry keeps the set of tracked endpoints reconciled with the
// hierarchy or the tracking feed, one bundle per endpoint key.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/tiptrails/internal/effects"
	"github.com/OCAP2/tiptrails/internal/matcher"
	"github.com/OCAP2/tiptrails/internal/motion"
	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/internal/tipaccess"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Mode selects where endpoints come from.
type Mode string

const (
	// ModeHierarchy discovers endpoints by name under Root.
	ModeHierarchy Mode = "hierarchy"
	// ModeManual tracks exactly the nodes in Config.Manual.
	ModeManual Mode = "manual"
	// ModeProvider derives endpoints from tracking frames every tick.
	ModeProvider Mode = "provider"
)

// DefaultGrace is how long an unseen provider endpoint keeps emitting.
const DefaultGrace = 50 * time.Millisecond

// minLossyScale bounds the parent-scale compensation divisor.
const minLossyScale = 1e-4

// Config drives discovery and per-tick updates.
type Config struct {
	Mode   Mode
	Root   core.NodeHandle
	Manual []core.NodeHandle
	Rules  matcher.Rules

	AutoScan       bool
	RescanInterval time.Duration
	MinEndpoints   int
	LogFound       bool

	CompensateParentScale bool
	WidthInPixels         bool
	PixelWidth            float64
	// Camera returns the viewpoint for pixel widths; nil or false disables them.
	Camera func() (scene.Camera, bool)

	// Owner parents provider bundles; Anchor maps provider-local tips to world.
	Owner     core.NodeHandle
	Anchor    core.NodeHandle
	UnitScale float64
	LeftHand  bool
	RightHand bool
	Grace     time.Duration
	// WidthBySpeed drives provider trail widths from Width.
	WidthBySpeed bool
	Width        motion.WidthRange
}

// DefaultConfig returns hierarchy discovery with the default rules.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeHierarchy,
		Rules:                 matcher.DefaultRules(),
		AutoScan:              true,
		RescanInterval:        500 * time.Millisecond,
		MinEndpoints:          8,
		CompensateParentScale: true,
		PixelWidth:            3,
		UnitScale:             tipaccess.DefaultUnitScale,
		LeftHand:              true,
		RightHand:             true,
		Grace:                 DefaultGrace,
		WidthBySpeed:          true,
		Width:                 motion.DefaultWidthRange(),
	}
}

// FrameSource supplies the most recent tracking frame.
type FrameSource interface {
	CurrentFrame() (core.Frame, bool)
}

// Sink observes bundle lifecycle and per-tick samples. Calls happen with the
// registry lock held and must not block.
type Sink interface {
	BundleAdded(rec core.BundleRecord)
	BundleRemoved(rec core.BundleRecord)
	Sample(s core.TrailSample)
}

// Dependencies holds the collaborators of a Registry.
type Dependencies struct {
	Hierarchy scene.Hierarchy
	Effects   *effects.Manager
	Source    FrameSource
	Sink      Sink
	Logger    *slog.Logger
}

// ScanResult reports what a scan changed.
type ScanResult struct {
	Added      []core.EndpointKey
	Removed    []core.EndpointKey
	Candidates int
}

// Changed reports whether the scan added or removed anything.
func (r ScanResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

type entry struct {
	node     core.NodeHandle
	bundle   *effects.Bundle
	lastSeen time.Time
}

// Registry maps endpoint keys to bundles. All exported methods are safe for
// concurrent use.
type Registry struct {
	deps    Dependencies
	logger  *slog.Logger
	adapter *tipaccess.Adapter
	est     *motion.Estimator

	mu       sync.Mutex
	cfg      Config
	selector *matcher.Selector
	entries  map[core.EndpointKey]*entry
	lastScan time.Time
	now      time.Time
	persist  bool

	// provider activity since the last scan
	framesSinceScan int
	tipsSinceScan   int

	scans      metric.Int64Counter
	created    metric.Int64Counter
	removed    metric.Int64Counter
	skipped    metric.Int64Counter
	registered metric.Int64ObservableGauge
	modeAttr   attribute.KeyValue
}

// New builds a registry. Metrics use the global OTel meter (no-op if not
// configured). An invalid match pattern is logged and replaced by the
// default pattern.
func New(cfg Config, persist bool, deps Dependencies) (*Registry, error) {
	if deps.Hierarchy == nil || deps.Effects == nil {
		return nil, fmt.Errorf("registry requires a hierarchy and an effects manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		deps:    deps,
		logger:  logger,
		est:     motion.NewEstimator(),
		entries: make(map[core.EndpointKey]*entry),
		persist: persist,
	}
	r.configure(cfg)

	m := meter()
	var err error

	r.scans, err = m.Int64Counter(
		"registry.scans",
		metric.WithDescription("Endpoint discovery passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scans counter: %w", err)
	}

	r.created, err = m.Int64Counter(
		"registry.bundles.created",
		metric.WithDescription("Resource bundles created"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}

	r.removed, err = m.Int64Counter(
		"registry.bundles.removed",
		metric.WithDescription("Resource bundles removed or detached"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	r.skipped, err = m.Int64Counter(
		"registry.tips.skipped",
		metric.WithDescription("Provider fingers whose tip could not be extracted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	r.registered, err = m.Int64ObservableGauge(
		"registry.endpoints",
		metric.WithDescription("Currently registered endpoints"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating endpoints gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			o.ObserveInt64(r.registered, int64(len(r.entries)), metric.WithAttributes(r.modeAttr))
			return nil
		},
		r.registered,
	)
	if err != nil {
		return nil, fmt.Errorf("registering endpoints callback: %w", err)
	}

	return r, nil
}

// Reconfigure swaps the configuration. Existing bundles are kept; the next
// scan reconciles them with the new rules.
func (r *Registry) Reconfigure(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configure(cfg)
}

func (r *Registry) configure(cfg Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeHierarchy
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	sel, err := matcher.NewSelector(cfg.Rules)
	if err != nil {
		r.logger.Warn("Invalid endpoint pattern, using default", "pattern", cfg.Rules.Pattern, "error", err)
	}
	if widthDriven(r.cfg) && !widthDriven(cfg) {
		r.deps.Effects.Unpin()
	}
	r.cfg = cfg
	r.selector = sel
	r.adapter = tipaccess.New(cfg.UnitScale)
	r.modeAttr = attribute.String("mode", string(cfg.Mode))
}

// widthDriven reports whether ticks set per-bundle widths under cfg.
func widthDriven(cfg Config) bool {
	if cfg.Mode == ModeProvider {
		return cfg.WidthBySpeed
	}
	return cfg.WidthInPixels && cfg.Camera != nil
}

// Config returns the active configuration.
func (r *Registry) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Activate stamps the clock and runs a forced scan.
func (r *Registry) Activate(now time.Time) ScanResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r.scan(true)
}

// Scan reconciles the entries with the current candidates at the time of the
// latest Tick or Activate. Dead entries are removed first, then new
// candidates are added in discovery order. force only affects logging.
func (r *Registry) Scan(force bool) ScanResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scan(force)
}

func (r *Registry) scan(force bool) ScanResult {
	now := r.now
	r.lastScan = now
	r.scans.Add(context.Background(), 1, metric.WithAttributes(r.modeAttr))

	// Phase 1: collect dead entries and the candidate set.
	var dead []core.EndpointKey
	for key, e := range r.entries {
		if !r.alive(e, now) {
			dead = append(dead, key)
		}
	}
	effects.SortKeys(dead)

	var candidates []core.NodeHandle
	if r.cfg.Mode != ModeProvider {
		var manual []core.NodeHandle
		if r.cfg.Mode == ModeManual {
			manual = r.cfg.Manual
		}
		candidates = r.selector.Select(r.deps.Hierarchy, r.cfg.Root, manual)
	}

	// Phase 2: diff.
	gone := make(map[core.EndpointKey]bool, len(dead))
	for _, key := range dead {
		gone[key] = true
	}
	var fresh []core.NodeHandle
	for _, n := range candidates {
		key := core.StructuralKey(n)
		if _, ok := r.entries[key]; ok && !gone[key] {
			continue
		}
		fresh = append(fresh, n)
	}

	// Phase 3: apply removals, then additions.
	res := ScanResult{Candidates: len(candidates)}
	for _, key := range dead {
		r.remove(key, core.BundleRemoved, now)
		res.Removed = append(res.Removed, key)
	}
	for _, n := range fresh {
		key := core.StructuralKey(n)
		if r.add(key, n, r.deps.Hierarchy.Name(n), now) != nil {
			res.Added = append(res.Added, key)
		}
	}

	if r.cfg.Mode == ModeProvider {
		switch {
		case r.framesSinceScan == 0:
			r.logger.Debug("No tracking frame since last scan")
		case r.tipsSinceScan == 0:
			r.logger.Warn("No fingertips found in tracking frames, check hand filters and tracking",
				"frames", r.framesSinceScan, "leftHand", r.cfg.LeftHand, "rightHand", r.cfg.RightHand)
		case force || r.cfg.LogFound:
			r.logger.Info("Endpoints found", "tips", r.tipsSinceScan, "registered", len(r.entries))
		}
		r.framesSinceScan, r.tipsSinceScan = 0, 0
	} else {
		if len(candidates) == 0 {
			r.logger.Warn("No endpoints found, check node names or set a manual list",
				"root", r.deps.Hierarchy.Name(r.cfg.Root), "mode", string(r.cfg.Mode))
		} else if force || r.cfg.LogFound {
			r.logger.Info("Endpoints found", "count", len(candidates), "registered", len(r.entries))
		}
	}
	return res
}

// alive reports whether an entry should survive a scan.
func (r *Registry) alive(e *entry, now time.Time) bool {
	if !r.deps.Effects.Alive(e.bundle) {
		return false
	}
	if e.bundle.Key.Kind == core.KeyStructural {
		return r.deps.Hierarchy.Valid(e.node)
	}
	// Provider entries are reaped once their trail has faded out.
	return now.Sub(e.lastSeen) <= r.cfg.Grace+r.deps.Effects.Style().Lifetime
}

func (r *Registry) add(key core.EndpointKey, parent core.NodeHandle, name string, now time.Time) *entry {
	b, err := r.deps.Effects.Create(key, parent, name)
	if err != nil {
		r.logger.Warn("Bundle not created", "key", key.String(), "error", err)
		return nil
	}
	b.LastSeen = now
	e := &entry{node: parent, bundle: b, lastSeen: now}
	if key.Kind == core.KeySynthetic {
		e.node = core.NodeHandle{}
	}
	r.entries[key] = e
	r.created.Add(context.Background(), 1, metric.WithAttributes(r.modeAttr))
	if r.deps.Sink != nil {
		r.deps.Sink.BundleAdded(core.BundleRecord{
			Key: key, Name: name, Event: core.BundleCreated, Time: now, HasMarker: b.HasMarker(),
		})
	}
	return e
}

func (r *Registry) remove(key core.EndpointKey, ev core.BundleEvent, now time.Time) {
	e, ok := r.entries[key]
	if !ok {
		return
	}
	if ev != core.BundleDetached {
		r.deps.Effects.Destroy(key)
	}
	r.est.Forget(key)
	delete(r.entries, key)
	r.removed.Add(context.Background(), 1, metric.WithAttributes(r.modeAttr, attribute.String("event", string(ev))))
	if r.deps.Sink != nil {
		r.deps.Sink.BundleRemoved(core.BundleRecord{
			Key: key, Name: e.bundle.Name, Event: ev, Time: now, HasMarker: e.bundle.HasMarker(),
		})
	}
}

// Tick advances one frame: bundles follow their endpoints, emission and
// widths are updated, and a scan runs when one is due.
func (r *Registry) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now

	if r.cfg.Mode == ModeProvider {
		r.tickProvider(now)
	} else {
		r.tickStructural(now)
	}

	if r.scanDue(now) {
		r.scan(false)
	}
}

func (r *Registry) scanDue(now time.Time) bool {
	if now.Sub(r.lastScan) <= r.cfg.RescanInterval {
		return false
	}
	if r.cfg.Mode == ModeProvider {
		return true
	}
	return r.cfg.AutoScan && len(r.entries) < r.cfg.MinEndpoints
}

func (r *Registry) tickStructural(now time.Time) {
	h := r.deps.Hierarchy
	fx := r.deps.Effects

	var cam scene.Camera
	useCam := false
	if r.cfg.WidthInPixels && r.cfg.Camera != nil {
		cam, useCam = r.cfg.Camera()
	}
	widthScale := fx.Style().WidthScale

	var dead []core.EndpointKey
	for _, key := range r.sortedKeys() {
		e := r.entries[key]
		b := e.bundle
		if !h.Valid(e.node) || !fx.Alive(b) {
			dead = append(dead, key)
			continue
		}
		pos, ok := h.WorldPosition(e.node)
		if !ok {
			continue
		}

		active := h.ActiveInHierarchy(e.node)
		fx.SetEmitting(b, active)
		fx.Move(b, pos)
		if r.cfg.CompensateParentScale {
			fx.SetScale(b, 1/math.Max(minLossyScale, h.LossyScale(e.node)))
		}
		if useCam {
			fx.SetWidth(b, motion.PixelWidth(cam, pos, r.cfg.PixelWidth)*widthScale)
		}

		speed := r.est.Observe(key, pos, now)
		if active {
			e.lastSeen = now
			b.LastSeen = now
		}
		r.sample(key, b, pos, speed, now)
	}

	for _, key := range dead {
		r.remove(key, core.BundleRemoved, now)
	}
}

func (r *Registry) tickProvider(now time.Time) {
	if r.deps.Source == nil {
		return
	}
	frame, ok := r.deps.Source.CurrentFrame()
	if !ok {
		return
	}
	r.framesSinceScan++

	fx := r.deps.Effects
	seen := make(map[core.EndpointKey]bool)

	for _, hand := range frame.Hands {
		switch tipaccess.Chirality(hand) {
		case core.ChiralityLeft:
			if !r.cfg.LeftHand {
				continue
			}
		case core.ChiralityRight:
			if !r.cfg.RightHand {
				continue
			}
		}

		tips, skipped := r.adapter.Tips(hand)
		if skipped > 0 {
			r.skipped.Add(context.Background(), int64(skipped))
		}

		for _, tip := range tips {
			world := r.toWorld(tip.Local)

			e, ok := r.entries[tip.Key]
			if !ok || !fx.Alive(e.bundle) {
				if ok {
					r.remove(tip.Key, core.BundleRemoved, now)
				}
				e = r.add(tip.Key, r.cfg.Owner, fmt.Sprintf("Finger_%d", tip.Key.ID), now)
				if e == nil {
					continue
				}
			}
			b := e.bundle

			fx.SetEmitting(b, true)
			fx.Move(b, world)
			e.lastSeen = now
			b.LastSeen = now

			speed := r.est.Observe(tip.Key, world, now)
			if r.cfg.WidthBySpeed {
				fx.SetWidth(b, motion.WidthBySpeed(speed, r.cfg.Width))
			}
			seen[tip.Key] = true
			r.tipsSinceScan++
			r.sample(tip.Key, b, world, speed, now)
		}
	}

	for key, e := range r.entries {
		if !seen[key] && now.Sub(e.lastSeen) > r.cfg.Grace {
			fx.SetEmitting(e.bundle, false)
		}
	}
}

func (r *Registry) toWorld(local core.Position3D) core.Position3D {
	if r.cfg.Anchor.IsZero() {
		return local
	}
	if world, ok := r.deps.Hierarchy.TransformPoint(r.cfg.Anchor, local); ok {
		return world
	}
	return local
}

func (r *Registry) sample(key core.EndpointKey, b *effects.Bundle, pos core.Position3D, speed float64, now time.Time) {
	if r.deps.Sink == nil {
		return
	}
	r.deps.Sink.Sample(core.TrailSample{
		Key: key, Time: now, Position: pos, Speed: speed, Width: b.Width, Emitting: b.Emitting,
	})
}

// ChildrenChanged forces a scan when auto scanning is on.
func (r *Registry) ChildrenChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.AutoScan {
		r.scan(true)
	}
}

// StopEmitting turns emission off on every bundle.
func (r *Registry) StopEmitting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopEmitting()
}

func (r *Registry) stopEmitting() {
	for _, e := range r.entries {
		if r.deps.Effects.Alive(e.bundle) {
			r.deps.Effects.SetEmitting(e.bundle, false)
		}
	}
}

// Deactivate stops emission and tears the bundles down. With persistence on
// the bundles are detached and left to the scene instead. It returns how
// many entries were dropped.
func (r *Registry) Deactivate() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopEmitting()
	ev := core.BundleRemoved
	if r.persist {
		ev = core.BundleDetached
		r.deps.Effects.Detach()
	}
	return r.dropAll(ev)
}

// Clear destroys every bundle now, regardless of persistence.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropAll(core.BundleRemoved)
}

func (r *Registry) dropAll(ev core.BundleEvent) int {
	keys := r.sortedKeys()
	for _, key := range keys {
		r.remove(key, ev, r.now)
	}
	if ev != core.BundleDetached {
		r.deps.Effects.DestroyAll()
	}
	r.est.Reset()
	return len(keys)
}

// SetPersist changes the teardown policy used by Deactivate.
func (r *Registry) SetPersist(persist bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist = persist
}

// Valid reports whether key has a live bundle.
func (r *Registry) Valid(key core.EndpointKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return ok && r.deps.Effects.Alive(e.bundle)
}

// Bundle returns the bundle registered for key.
func (r *Registry) Bundle(key core.EndpointKey) (*effects.Bundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.bundle, true
}

// Keys returns the registered keys in a stable order.
func (r *Registry) Keys() []core.EndpointKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedKeys()
}

// Len is the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// LastScan is the time of the latest scan.
func (r *Registry) LastScan() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastScan
}

func (r *Registry) sortedKeys() []core.EndpointKey {
	keys := make([]core.EndpointKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	effects.SortKeys(keys)
	return keys
}
