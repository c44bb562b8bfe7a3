// Package handlers maps host commands onto the trail behaviour.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/OCAP2/tiptrails/internal/behavior"
	"github.com/OCAP2/tiptrails/internal/dispatcher"
	"github.com/OCAP2/tiptrails/internal/influx"
	"github.com/OCAP2/tiptrails/internal/parser"
	"github.com/OCAP2/tiptrails/internal/provider"
	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Host commands.
const (
	CmdEnable   = ":ENABLE:"
	CmdDisable  = ":DISABLE:"
	CmdScan     = ":SCAN:"
	CmdClear    = ":CLEAR:"
	CmdTick     = ":TICK:"
	CmdFrame    = ":FRAME:"
	CmdStatus   = ":STATUS:"
	CmdChildren = ":CHILDREN:"
	CmdMetric   = ":METRIC:"

	// node commands, registered with a NodeTree
	CmdNode    = ":NODE:"
	CmdActive  = ":ACTIVE:"
	CmdDestroy = ":DESTROY:"
	CmdRig     = ":RIG:"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Behavior *behavior.Behavior
	Parser   *parser.Parser
	// Frames receives frames pushed with :FRAME:.
	Frames *provider.Latest
	// Nodes is optional; without it the node commands are not registered.
	// Paths are resolved below Root.
	Nodes NodeTree
	Root  core.NodeHandle
	// Influx is optional; without it :METRIC: is not registered.
	Influx *influx.Manager
	Logger *slog.Logger
}

// Service provides the command handlers.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(logger)
	}
	return &Service{deps: deps, logger: logger}
}

// RegisterHandlers registers all commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Lifecycle - sync, the host waits for the result
	d.Register(CmdEnable, s.handleEnable, dispatcher.Logged())
	d.Register(CmdDisable, s.handleDisable, dispatcher.Logged())
	d.Register(CmdScan, s.handleScan, dispatcher.Logged())
	d.Register(CmdClear, s.handleClear, dispatcher.Logged())
	d.Register(CmdChildren, s.handleChildren, dispatcher.Logged())
	d.Register(CmdStatus, s.handleStatus)

	// Per-frame traffic - sync and unlogged
	d.Register(CmdTick, s.handleTick)
	d.Register(CmdFrame, s.handleFrame)

	if s.deps.Nodes != nil {
		s.registerNodeHandlers(d)
	}
	if s.deps.Influx != nil {
		d.Register(CmdMetric, s.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
	}
}

func (s *Service) handleEnable(e dispatcher.Event) (any, error) {
	if err := s.deps.Behavior.Enable(eventTime(e)); err != nil {
		return nil, err
	}
	return s.deps.Behavior.Status(), nil
}

func (s *Service) handleDisable(e dispatcher.Event) (any, error) {
	if err := s.deps.Behavior.Disable(eventTime(e)); err != nil {
		return nil, err
	}
	return s.deps.Behavior.Status(), nil
}

// ScanSummary is the result of :SCAN:.
type ScanSummary struct {
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Candidates int `json:"candidates"`
}

func (s *Service) handleScan(dispatcher.Event) (any, error) {
	res, err := s.deps.Behavior.ForceRescan()
	if err != nil {
		return nil, err
	}
	return ScanSummary{Added: len(res.Added), Removed: len(res.Removed), Candidates: res.Candidates}, nil
}

func (s *Service) handleClear(dispatcher.Event) (any, error) {
	return s.deps.Behavior.ClearNow(), nil
}

func (s *Service) handleChildren(dispatcher.Event) (any, error) {
	s.deps.Behavior.ChildrenChanged()
	return nil, nil
}

func (s *Service) handleStatus(dispatcher.Event) (any, error) {
	data, err := json.Marshal(s.deps.Behavior.Status())
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return string(data), nil
}

// handleTick advances one frame. An optional argument gives the host time in
// seconds since the epoch.
func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	now := eventTime(e)
	if len(e.Args) > 0 {
		secs, err := strconv.ParseFloat(util.CleanArg(e.Args[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tick time %q: %w", e.Args[0], err)
		}
		now = time.Unix(0, int64(secs*float64(time.Second))).UTC()
	}
	s.deps.Behavior.Update(now)
	return nil, nil
}

func (s *Service) handleFrame(e dispatcher.Event) (any, error) {
	if s.deps.Frames == nil {
		return nil, fmt.Errorf("frames are not accepted in this mode")
	}
	data := e.Args
	if e.Raw != "" {
		data = []string{e.Raw}
	}
	f, err := s.deps.Parser.ParseFrame(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	s.deps.Frames.Publish(f)
	return f.ID, nil
}

func (s *Service) handleMetric(e dispatcher.Event) (any, error) {
	bucket, point, err := influx.ProcessMetricData(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	if err := s.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}
	return nil, nil
}

func eventTime(e dispatcher.Event) time.Time {
	if e.Timestamp.IsZero() {
		return time.Now()
	}
	return e.Timestamp
}
