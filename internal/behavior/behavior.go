// Package behavior is the owning component of the trail system. It maps the
// host lifecycle (enable, update, disable, destroy) onto the registry and
// opens a recording session while it runs.
package behavior

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/effects"
	"github.com/OCAP2/tiptrails/internal/registry"
	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/internal/session"
	"github.com/OCAP2/tiptrails/pkg/core"
)

var (
	// ErrDestroyed is returned once Destroy has been called.
	ErrDestroyed = errors.New("behavior destroyed")
	// ErrNotRunning is returned for operations that need an active registry.
	ErrNotRunning = errors.New("behavior not running")
)

// Config is everything the behaviour can be told from outside.
type Config struct {
	Registry registry.Config
	Style    core.Style
	// Persist leaves trails in the scene after disable.
	Persist bool
	// SpawnInEditMode runs the behaviour even while the host is not playing.
	SpawnInEditMode bool

	SessionName string
	Version     string
}

// Recorder receives the registry output and brackets it in sessions.
type Recorder interface {
	registry.Sink
	Begin(s *core.Session) error
	End(end time.Time) error
}

// Dependencies holds the collaborators of a Behavior.
type Dependencies struct {
	Hierarchy scene.Hierarchy
	Renderer  scene.Renderer
	Source    registry.FrameSource
	// Recorder is optional.
	Recorder Recorder
	Sessions *session.Context
	Logger   *slog.Logger
	// Playing reports whether the host is running; nil means always.
	Playing func() bool
}

// Status is a point-in-time view of the behaviour.
type Status struct {
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	Mode      string    `json:"mode"`
	Persist   bool      `json:"persist"`
	Endpoints int       `json:"endpoints"`
	Owned     int       `json:"ownedResources"`
	LastScan  time.Time `json:"lastScan"`
	SessionID string    `json:"sessionId,omitempty"`
	Recording bool      `json:"recording"`
}

// Behavior is safe for concurrent use.
type Behavior struct {
	deps   Dependencies
	logger *slog.Logger
	fx     *effects.Manager
	reg    *registry.Registry

	mu        sync.Mutex
	cfg       Config
	enabled   bool
	active    bool
	recording bool
	destroyed bool
}

// New wires the effects manager and registry. Nothing is spawned until the
// first Enable while the host is playing.
func New(cfg Config, deps Dependencies) (*Behavior, error) {
	if deps.Hierarchy == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("behavior requires a hierarchy and a renderer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewContext()
	}
	cfg = sanitize(cfg, logger)

	fx := effects.NewManager(deps.Renderer, cfg.Style, effects.Options{Persist: cfg.Persist, Logger: logger})

	rdeps := registry.Dependencies{
		Hierarchy: deps.Hierarchy,
		Effects:   fx,
		Source:    deps.Source,
		Logger:    logger,
	}
	if deps.Recorder != nil {
		rdeps.Sink = deps.Recorder
	}
	reg, err := registry.New(cfg.Registry, cfg.Persist, rdeps)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	return &Behavior{deps: deps, logger: logger, fx: fx, reg: reg, cfg: cfg}, nil
}

func (b *Behavior) shouldRun() bool {
	return b.cfg.SpawnInEditMode || b.deps.Playing == nil || b.deps.Playing()
}

// Enable marks the behaviour enabled and, when the host is playing, starts a
// session and runs the first scan.
func (b *Behavior) Enable(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrDestroyed
	}
	b.enabled = true
	b.activate(now)
	return nil
}

func (b *Behavior) activate(now time.Time) {
	if b.active || !b.shouldRun() {
		return
	}
	s := b.deps.Sessions.Begin(b.cfg.SessionName, string(b.cfg.Registry.Mode), b.cfg.Version, b.cfg.Style, now)
	if b.deps.Recorder != nil {
		if err := b.deps.Recorder.Begin(s); err != nil {
			b.logger.Error("Recording not started", "session", s.ID, "error", err)
		} else {
			b.recording = true
		}
	}
	b.active = true
	res := b.reg.Activate(now)
	b.logger.Info("Trails enabled", "session", s.ID, "mode", string(b.cfg.Registry.Mode), "endpoints", len(res.Added))
}

// Update advances one frame. A behaviour enabled before the host started
// playing activates on its first update while playing.
func (b *Behavior) Update(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled || b.destroyed || !b.shouldRun() {
		return
	}
	if !b.active {
		b.activate(now)
	}
	b.reg.Tick(now)
}

// Disable stops emission and tears the bundles down, or detaches them when
// persistence is on, then closes the session.
func (b *Behavior) Disable(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	return b.deactivate(now)
}

func (b *Behavior) deactivate(now time.Time) error {
	if !b.active {
		return nil
	}
	n := b.reg.Deactivate()
	b.active = false

	var err error
	if b.recording {
		b.recording = false
		if err = b.deps.Recorder.End(now); err != nil {
			err = fmt.Errorf("ending recording: %w", err)
		}
	}
	s := b.deps.Sessions.End(now)
	attrs := []any{"endpoints", n, "persist", b.cfg.Persist}
	if s != nil {
		attrs = append(attrs, "session", s.ID, "duration", now.Sub(s.StartTime))
	}
	b.logger.Info("Trails disabled", attrs...)
	return err
}

// Destroy disables the behaviour for good.
func (b *Behavior) Destroy(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	b.enabled = false
	err := b.deactivate(now)
	b.destroyed = true
	return err
}

// ForceRescan runs a discovery pass immediately.
func (b *Behavior) ForceRescan() (registry.ScanResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return registry.ScanResult{}, ErrNotRunning
	}
	return b.reg.Scan(true), nil
}

// ClearNow destroys every bundle regardless of persistence. The next scan
// recreates them while the behaviour runs.
func (b *Behavior) ClearNow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.reg.Clear()
	b.logger.Info("Trails cleared", "endpoints", n)
	return n
}

// ChildrenChanged reacts to a hierarchy change below the root.
func (b *Behavior) ChildrenChanged() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		b.reg.ChildrenChanged()
	}
}

// Validate applies a new configuration to the live system. Style changes
// reach existing bundles without recreating them.
func (b *Behavior) Validate(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cfg = sanitize(cfg, b.logger)
	b.cfg = cfg
	b.fx.SetStyle(cfg.Style)
	b.fx.SetPersist(cfg.Persist)
	b.reg.SetPersist(cfg.Persist)
	b.reg.Reconfigure(cfg.Registry)
}

// Config returns the active configuration.
func (b *Behavior) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Registry exposes the endpoint registry.
func (b *Behavior) Registry() *registry.Registry {
	return b.reg
}

// Status reports the current state.
func (b *Behavior) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Enabled:   b.enabled,
		Running:   b.active,
		Mode:      string(b.cfg.Registry.Mode),
		Persist:   b.cfg.Persist,
		Endpoints: b.reg.Len(),
		Owned:     b.fx.Owned(),
		LastScan:  b.reg.LastScan(),
		Recording: b.recording,
	}
	if s, ok := b.deps.Sessions.Current(); ok {
		st.SessionID = s.ID
	}
	return st
}
