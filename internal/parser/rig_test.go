package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/pkg/core"
)

const handRig = `{
	"name": "LeftHand",
	"position": [0.1, 1.2, 0.3],
	"scale": 2,
	"children": [
		{"name": "index_end", "position": [0, 0.08, 0]},
		{"name": "thumb_end", "active": false}
	]
}`

func TestParseRigJSON(t *testing.T) {
	p := newTestParser()

	nodes, err := p.ParseRigJSON([]byte(handRig))
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	hand := nodes[0]
	assert.Equal(t, "LeftHand", hand.Name)
	assert.Equal(t, core.Position3D{X: 0.1, Y: 1.2, Z: 0.3}, hand.Local)
	assert.Equal(t, 2.0, hand.Scale)
	assert.True(t, hand.Active)
	require.Len(t, hand.Children, 2)
	assert.Equal(t, RigNode{Name: "index_end", Local: core.Position3D{Y: 0.08}, Scale: 1, Active: true}, hand.Children[0])
	assert.False(t, hand.Children[1].Active)
}

func TestParseRigJSON_Array(t *testing.T) {
	p := newTestParser()

	nodes, err := p.ParseRigJSON([]byte(`[{"name": "LeftHand"}, {"name": "RightHand"}]`))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "RightHand", nodes[1].Name)
}

func TestParseRigJSON_Invalid(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"malformed", `{"name":`, "malformed JSON"},
		{"scalar", `42`, "expected an object or array"},
		{"no name", `{"position": [0, 0, 0]}`, "has no name"},
		{"nameless child", `{"name": "Hand", "children": [{"scale": 1}]}`, `below "Hand" has no name`},
		{"short position", `{"name": "Hand", "children": [{"name": "tip", "position": [1, 2]}]}`, "Hand/tip: position needs 3 components"},
		{"child not object", `{"name": "Hand", "children": [1]}`, "is not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseRigJSON([]byte(tt.input))
			require.ErrorIs(t, err, ErrInvalidRig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRig_HostArgs(t *testing.T) {
	p := newTestParser()

	nodes, err := p.ParseRig([]string{`"{""name"": ""Hand""}"`})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Hand", nodes[0].Name)

	_, err = p.ParseRig(nil)
	assert.ErrorIs(t, err, ErrInvalidRig)
}
