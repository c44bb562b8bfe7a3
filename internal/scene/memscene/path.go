package memscene

import (
	"strings"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// Child returns the first child of parent named name.
func (s *Scene) Child(parent core.NodeHandle, name string) (core.NodeHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.child(parent, name)
}

func (s *Scene) child(parent core.NodeHandle, name string) (core.NodeHandle, bool) {
	p, ok := s.nodes.get(parent.ID, parent.Version)
	if !ok {
		return core.NodeHandle{}, false
	}
	for _, c := range p.children {
		if n, ok := s.nodes.get(c.ID, c.Version); ok && n.name == name {
			return c, true
		}
	}
	return core.NodeHandle{}, false
}

// Find resolves a slash separated path of node names below root. An empty
// path is root itself.
func (s *Scene) Find(root core.NodeHandle, path string) (core.NodeHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes.get(root.ID, root.Version); !ok {
		return core.NodeHandle{}, false
	}
	h := root
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		next, ok := s.child(h, name)
		if !ok {
			return core.NodeHandle{}, false
		}
		h = next
	}
	return h, true
}
