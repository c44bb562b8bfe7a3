package handlers

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/OCAP2/tiptrails/internal/dispatcher"
	"github.com/OCAP2/tiptrails/internal/parser"
	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// NodeTree is the host hierarchy edited by the node commands.
type NodeTree interface {
	Find(root core.NodeHandle, path string) (core.NodeHandle, bool)
	AddNode(parent core.NodeHandle, name string, local core.Position3D) (core.NodeHandle, error)
	SetLocalPosition(h core.NodeHandle, local core.Position3D)
	SetActive(h core.NodeHandle, active bool)
	SetScale(h core.NodeHandle, scale float64)
	DestroyNode(h core.NodeHandle)
}

var errNoPath = errors.New("node path required")

func (s *Service) registerNodeHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdNode, s.handleNode)
	d.Register(CmdActive, s.handleActive)
	d.Register(CmdDestroy, s.handleDestroy, dispatcher.Logged())
	d.Register(CmdRig, s.handleRig, dispatcher.Logged())
}

// handleNode creates the node at a path below the root, or moves it when it
// already exists. Args: path [x y z].
func (s *Service) handleNode(e dispatcher.Event) (any, error) {
	p, err := nodePath(e.Args)
	if err != nil {
		return nil, err
	}
	local, err := position(e.Args[1:])
	if err != nil {
		return nil, err
	}

	tree := s.deps.Nodes
	if h, ok := tree.Find(s.deps.Root, p); ok {
		tree.SetLocalPosition(h, local)
		return p, nil
	}
	parentPath, name := path.Split(p)
	parent, ok := tree.Find(s.deps.Root, parentPath)
	if !ok {
		return nil, fmt.Errorf("parent of %q not found", p)
	}
	if _, err := tree.AddNode(parent, name, local); err != nil {
		return nil, fmt.Errorf("failed to add node %q: %w", p, err)
	}
	s.deps.Behavior.ChildrenChanged()
	return p, nil
}

// handleActive toggles a node. Args: path true|false.
func (s *Service) handleActive(e dispatcher.Event) (any, error) {
	p, err := nodePath(e.Args)
	if err != nil {
		return nil, err
	}
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("active flag required")
	}
	active, err := cast.ToBoolE(util.CleanArg(e.Args[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid active flag %q: %w", e.Args[1], err)
	}
	h, ok := s.deps.Nodes.Find(s.deps.Root, p)
	if !ok {
		return nil, fmt.Errorf("node %q not found", p)
	}
	s.deps.Nodes.SetActive(h, active)
	return nil, nil
}

// handleDestroy removes a node and its subtree. Args: path.
func (s *Service) handleDestroy(e dispatcher.Event) (any, error) {
	p, err := nodePath(e.Args)
	if err != nil {
		return nil, err
	}
	h, ok := s.deps.Nodes.Find(s.deps.Root, p)
	if !ok {
		return nil, fmt.Errorf("node %q not found", p)
	}
	s.deps.Nodes.DestroyNode(h)
	s.deps.Behavior.ChildrenChanged()
	return nil, nil
}

// handleRig builds a rig document below the root and returns the number of
// nodes added.
func (s *Service) handleRig(e dispatcher.Event) (any, error) {
	data := e.Args
	if e.Raw != "" {
		data = []string{e.Raw}
	}
	nodes, err := s.deps.Parser.ParseRig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rig: %w", err)
	}
	added, err := LoadRig(s.deps.Nodes, s.deps.Root, nodes)
	if added > 0 {
		s.deps.Behavior.ChildrenChanged()
	}
	return added, err
}

// LoadRig adds the rig nodes below parent and returns how many were added.
func LoadRig(tree NodeTree, parent core.NodeHandle, nodes []parser.RigNode) (int, error) {
	added := 0
	for _, n := range nodes {
		h, err := tree.AddNode(parent, n.Name, n.Local)
		if err != nil {
			return added, fmt.Errorf("failed to add node %q: %w", n.Name, err)
		}
		added++
		if n.Scale != 1 {
			tree.SetScale(h, n.Scale)
		}
		if !n.Active {
			tree.SetActive(h, false)
		}
		sub, err := LoadRig(tree, h, n.Children)
		added += sub
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

func nodePath(args []string) (string, error) {
	if len(args) == 0 {
		return "", errNoPath
	}
	p := strings.Trim(util.CleanArg(args[0]), "/")
	if p == "" {
		return "", errNoPath
	}
	return p, nil
}

func position(args []string) (core.Position3D, error) {
	if len(args) == 0 {
		return core.Position3D{}, nil
	}
	if len(args) != 3 {
		return core.Position3D{}, fmt.Errorf("position needs 3 components, got %d", len(args))
	}
	var xyz [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(util.CleanArg(a), 64)
		if err != nil {
			return core.Position3D{}, fmt.Errorf("invalid coordinate %q: %w", a, err)
		}
		xyz[i] = v
	}
	return core.Position3D{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
