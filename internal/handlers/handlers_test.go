package handlers

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/behavior"
	"github.com/OCAP2/tiptrails/internal/dispatcher"
	"github.com/OCAP2/tiptrails/internal/parser"
	"github.com/OCAP2/tiptrails/internal/provider"
	"github.com/OCAP2/tiptrails/internal/registry"
	"github.com/OCAP2/tiptrails/internal/scene/memscene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// nopLogger implements dispatcher.Logger for testing
type nopLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *nopLogger) Debug(string, ...any) {}
func (l *nopLogger) Info(string, ...any)  {}
func (l *nopLogger) Error(msg string, kv ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(msg, kv))
}

var t0 = time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

func newProviderService(t *testing.T) (*dispatcher.Dispatcher, *behavior.Behavior, *memscene.Scene) {
	t.Helper()
	s := memscene.New()
	latest := &provider.Latest{}

	rc := registry.DefaultConfig()
	rc.Mode = registry.ModeProvider
	b, err := behavior.New(behavior.Config{Registry: rc, Style: core.DefaultStyle()}, behavior.Dependencies{
		Hierarchy: s,
		Renderer:  s,
		Source:    latest,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(&nopLogger{})
	require.NoError(t, err)
	NewService(Dependencies{Behavior: b, Frames: latest}).RegisterHandlers(d)
	return d, b, s
}

const frameLine = `:FRAME: {"id": 5, "hands": [{"id": 3, "type": "right"}], "pointables": [{"handId": 3, "type": 1, "tipPosition": [1000, 0, 0]}]}`

func TestRegisterHandlers_Commands(t *testing.T) {
	d, _, _ := newProviderService(t)
	assert.Equal(t, []string{CmdChildren, CmdClear, CmdDisable, CmdEnable, CmdFrame, CmdScan, CmdStatus, CmdTick}, d.Commands())
	assert.False(t, d.HasHandler(CmdMetric), "metric needs influx")
	assert.False(t, d.HasHandler(CmdNode), "node commands need a node tree")
}

func TestRegisterHandlers_NodeCommands(t *testing.T) {
	d, _, _, _ := newHierarchyService(t)
	assert.Equal(t, []string{
		CmdActive, CmdChildren, CmdClear, CmdDestroy, CmdDisable, CmdEnable,
		CmdFrame, CmdNode, CmdRig, CmdScan, CmdStatus, CmdTick,
	}, d.Commands())
}

func TestFrameAndTick_CreateTrails(t *testing.T) {
	d, b, s := newProviderService(t)

	_, err := d.DispatchLine(":ENABLE:", t0)
	require.NoError(t, err)

	id, err := d.DispatchLine(frameLine, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	_, err = d.DispatchLine(":TICK:", t0.Add(16*time.Millisecond))
	require.NoError(t, err)

	require.True(t, b.Registry().Valid(core.SyntheticKey(3, 1)))
	bundle, _ := b.Registry().Bundle(core.SyntheticKey(3, 1))
	info, ok := s.Resource(bundle.Trail)
	require.True(t, ok)
	assert.InDelta(t, 1.0, info.Position.X, 1e-9)

	out, err := d.DispatchLine(":STATUS:", t0)
	require.NoError(t, err)
	var st behavior.Status
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &st))
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.Endpoints)
	assert.Equal(t, "provider", st.Mode)

	cleared, err := d.DispatchLine(":CLEAR:", t0)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, err = d.DispatchLine(":DISABLE:", t0.Add(time.Second))
	require.NoError(t, err)
	assert.Zero(t, s.ResourceCount())
}

func TestTick_ExplicitTime(t *testing.T) {
	d, b, _ := newProviderService(t)
	_, err := d.DispatchLine(":ENABLE:", t0)
	require.NoError(t, err)
	_, err = d.DispatchLine(frameLine, t0)
	require.NoError(t, err)

	_, err = d.Dispatch(dispatcher.Event{Command: CmdTick, Args: []string{fmt.Sprintf("%.3f", float64(t0.Unix())+0.5)}})
	require.NoError(t, err)
	bundle, ok := b.Registry().Bundle(core.SyntheticKey(3, 1))
	require.True(t, ok)
	assert.WithinDuration(t, t0.Add(500*time.Millisecond), bundle.LastSeen, time.Microsecond)

	_, err = d.Dispatch(dispatcher.Event{Command: CmdTick, Args: []string{"soon"}})
	assert.Error(t, err)
}

func TestScan_NotRunning(t *testing.T) {
	d, _, _ := newProviderService(t)
	_, err := d.DispatchLine(":SCAN:", t0)
	assert.ErrorIs(t, err, behavior.ErrNotRunning)
}

func TestScan_Summary(t *testing.T) {
	d, _, _ := newProviderService(t)
	_, err := d.DispatchLine(":ENABLE:", t0)
	require.NoError(t, err)

	out, err := d.DispatchLine(":SCAN:", t0)
	require.NoError(t, err)
	assert.Equal(t, ScanSummary{}, out)
}

func TestFrame_Invalid(t *testing.T) {
	d, _, _ := newProviderService(t)
	_, err := d.DispatchLine(":FRAME: {not json", t0)
	assert.Error(t, err)
}

func newHierarchyService(t *testing.T) (*dispatcher.Dispatcher, *behavior.Behavior, *memscene.Scene, core.NodeHandle) {
	t.Helper()
	s := memscene.New()
	root := s.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})

	rc := registry.DefaultConfig()
	rc.Root = root
	b, err := behavior.New(behavior.Config{Registry: rc, Style: core.DefaultStyle()}, behavior.Dependencies{
		Hierarchy: s,
		Renderer:  s,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(&nopLogger{})
	require.NoError(t, err)
	NewService(Dependencies{Behavior: b, Frames: &provider.Latest{}, Nodes: s, Root: root}).RegisterHandlers(d)
	return d, b, s, root
}

const handRig = `:RIG: {"name": "LeftHand", "children": [{"name": "index_end", "position": [0, 0.08, 0]}, {"name": "thumb_end"}]}`

func TestNodeCommands_DriveHierarchy(t *testing.T) {
	d, b, s, root := newHierarchyService(t)

	_, err := d.DispatchLine(":ENABLE:", t0)
	require.NoError(t, err)
	assert.Zero(t, b.Registry().Len())

	added, err := d.DispatchLine(handRig, t0)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 2, b.Registry().Len(), "rig triggers a rescan")

	_, err = d.DispatchLine(":NODE: LeftHand/middle_end 0 0.09 0", t0)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Registry().Len())

	index, ok := s.Find(root, "LeftHand/index_end")
	require.True(t, ok)
	_, err = d.DispatchLine(":NODE: LeftHand/index_end 0 0.1 0", t0)
	require.NoError(t, err)
	_, err = d.DispatchLine(":TICK:", t0.Add(16*time.Millisecond))
	require.NoError(t, err)
	bundle, ok := b.Registry().Bundle(core.StructuralKey(index))
	require.True(t, ok)
	info, _ := s.Resource(bundle.Trail)
	assert.InDelta(t, 0.1, info.Position.Y, 1e-12)
	assert.True(t, bundle.Emitting)

	_, err = d.DispatchLine(":ACTIVE: LeftHand/index_end false", t0)
	require.NoError(t, err)
	_, err = d.DispatchLine(":TICK:", t0.Add(32*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, bundle.Emitting)

	thumb, _ := s.Find(root, "LeftHand/thumb_end")
	_, err = d.DispatchLine(":DESTROY: LeftHand/thumb_end", t0)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Registry().Len())
	assert.False(t, b.Registry().Valid(core.StructuralKey(thumb)))
}

func TestNodeCommands_Invalid(t *testing.T) {
	d, _, _, _ := newHierarchyService(t)

	tests := []struct {
		name string
		line string
	}{
		{"node without path", ":NODE:"},
		{"node with missing parent", ":NODE: Missing/index_end"},
		{"node with short position", ":NODE: tip 1 2"},
		{"node with bad coordinate", ":NODE: tip 1 two 3"},
		{"active without flag", ":ACTIVE: tip"},
		{"active unknown node", ":ACTIVE: tip true"},
		{"destroy root", ":DESTROY: /"},
		{"destroy unknown node", ":DESTROY: tip"},
		{"malformed rig", ":RIG: {not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DispatchLine(tt.line, t0)
			assert.Error(t, err)
		})
	}
}

func TestLoadRig(t *testing.T) {
	s := memscene.New()
	root := s.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})

	added, err := LoadRig(s, root, []parser.RigNode{{
		Name: "RightHand", Scale: 2, Active: false,
		Children: []parser.RigNode{{Name: "index_end", Local: core.Position3D{X: 1}, Scale: 1, Active: true}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	hand, ok := s.Find(root, "RightHand")
	require.True(t, ok)
	assert.Equal(t, 2.0, s.LossyScale(hand))
	tip, ok := s.Find(root, "RightHand/index_end")
	require.True(t, ok)
	assert.False(t, s.ActiveInHierarchy(tip))
	pos, _ := s.WorldPosition(tip)
	assert.Equal(t, core.Position3D{X: 2}, pos)

	_, err = LoadRig(s, core.NodeHandle{ID: 99, Version: 1}, []parser.RigNode{{Name: "x", Scale: 1, Active: true}})
	assert.ErrorIs(t, err, memscene.ErrUnknownParent)
}
