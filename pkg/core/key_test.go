package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticKey(t *testing.T) {
	tests := []struct {
		hand, finger int
		wantID       int
		wantString   string
	}{
		{0, 0, 0, "tip#0"},
		{0, 4, 4, "tip#4"},
		{3, 1, 31, "tip#31"},
		{7, 4, 74, "tip#74"},
		{12, 2, 122, "tip#122"},
	}
	for _, tt := range tests {
		k := SyntheticKey(tt.hand, tt.finger)
		assert.Equal(t, KeySynthetic, k.Kind)
		assert.Equal(t, tt.wantID, k.ID, "hand %d finger %d", tt.hand, tt.finger)
		assert.True(t, k.Node.IsZero())
		assert.Equal(t, tt.wantString, k.String())
	}
}

func TestSyntheticKey_NoCollisionAcrossHands(t *testing.T) {
	seen := make(map[EndpointKey]string)
	for hand := 0; hand < 20; hand++ {
		for finger := 0; finger < 5; finger++ {
			k := SyntheticKey(hand, finger)
			label := fmt.Sprintf("hand %d finger %d", hand, finger)
			if prev, ok := seen[k]; ok {
				t.Fatalf("%s collides with %s", label, prev)
			}
			seen[k] = label
		}
	}
	assert.Len(t, seen, 100)
}

func TestStructuralKey(t *testing.T) {
	a := StructuralKey(NodeHandle{ID: 4, Version: 1})
	b := StructuralKey(NodeHandle{ID: 4, Version: 2})

	assert.Equal(t, KeyStructural, a.Kind)
	assert.NotEqual(t, a, b, "a reused slot is a new endpoint")
	assert.NotEqual(t, a, SyntheticKey(0, 4), "structural and synthetic keys never collide")
	assert.Equal(t, "node#4.1", a.String())
}

func TestKeyKind_String(t *testing.T) {
	assert.Equal(t, "structural", KeyStructural.String())
	assert.Equal(t, "synthetic", KeySynthetic.String())
	assert.Equal(t, "unknown", KeyKind(0).String())
	assert.Equal(t, "invalid", EndpointKey{}.String())
}
