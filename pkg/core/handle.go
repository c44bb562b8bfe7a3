// pkg/core/handle.go
package core

import "fmt"

// NodeHandle is an opaque reference to a node in the host hierarchy.
// The zero value refers to no node. Whether a handle still points at a live
// node is answered by the hierarchy, never by comparing against the zero value.
type NodeHandle struct {
	ID      uint32
	Version uint32
}

// IsZero reports whether h is the empty handle.
func (h NodeHandle) IsZero() bool {
	return h.ID == 0
}

func (h NodeHandle) String() string {
	return fmt.Sprintf("node#%d.%d", h.ID, h.Version)
}

// ResourceHandle is an opaque reference to a spawned visual resource.
type ResourceHandle struct {
	ID      uint32
	Version uint32
}

// IsZero reports whether h is the empty handle.
func (h ResourceHandle) IsZero() bool {
	return h.ID == 0
}

func (h ResourceHandle) String() string {
	return fmt.Sprintf("res#%d.%d", h.ID, h.Version)
}
