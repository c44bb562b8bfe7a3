// pkg/core/key.go
package core

import "fmt"

// KeyKind tells which identity scheme an EndpointKey uses.
type KeyKind uint8

const (
	// KeyStructural keys are hierarchy nodes; valid while the node exists.
	KeyStructural KeyKind = iota + 1
	// KeySynthetic keys are derived from feed metadata every frame.
	KeySynthetic
)

func (k KeyKind) String() string {
	switch k {
	case KeyStructural:
		return "structural"
	case KeySynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// EndpointKey is the stable identity of a tracked endpoint.
// It is comparable and used directly as a map key.
type EndpointKey struct {
	Kind KeyKind
	Node NodeHandle // set for KeyStructural
	ID   int        // set for KeySynthetic
}

// StructuralKey keys an endpoint by its hierarchy node.
func StructuralKey(h NodeHandle) EndpointKey {
	return EndpointKey{Kind: KeyStructural, Node: h}
}

// SyntheticKey derives a key as handID*10 + fingerIndex.
// Distinct hands never collide for the same finger index.
func SyntheticKey(handID, fingerIndex int) EndpointKey {
	return EndpointKey{Kind: KeySynthetic, ID: handID*10 + fingerIndex}
}

func (k EndpointKey) String() string {
	switch k.Kind {
	case KeyStructural:
		return k.Node.String()
	case KeySynthetic:
		return fmt.Sprintf("tip#%d", k.ID)
	default:
		return "invalid"
	}
}
