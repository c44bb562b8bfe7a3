package memscene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/pkg/core"
)

func TestFind(t *testing.T) {
	s := New()
	root := s.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})
	hand := s.MustAddNode(root, "LeftHand", core.Position3D{})
	tip := s.MustAddNode(hand, "index_end", core.Position3D{})

	tests := []struct {
		path string
		want core.NodeHandle
		ok   bool
	}{
		{"", root, true},
		{"/", root, true},
		{"LeftHand", hand, true},
		{"LeftHand/index_end", tip, true},
		{"/LeftHand/index_end/", tip, true},
		{"LeftHand/thumb_end", core.NodeHandle{}, false},
		{"index_end", core.NodeHandle{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := s.Find(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind_StaleRoot(t *testing.T) {
	s := New()
	root := s.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})
	s.DestroyNode(root)

	_, ok := s.Find(root, "")
	assert.False(t, ok)
}

func TestChild_FirstMatchWins(t *testing.T) {
	s := New()
	root := s.MustAddNode(core.NodeHandle{}, "Scene", core.Position3D{})
	first := s.MustAddNode(root, "tip", core.Position3D{})
	s.MustAddNode(root, "tip", core.Position3D{X: 1})

	got, ok := s.Child(root, "tip")
	require.True(t, ok)
	assert.Equal(t, first, got)
}
