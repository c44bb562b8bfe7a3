package parser

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrInvalidRig is returned for a rig document that cannot be built.
var ErrInvalidRig = errors.New("invalid rig")

// maxRigDepth bounds nesting of rig documents.
const maxRigDepth = 64

// RigNode is one node of a rig document:
//
//	{"name": "LeftHand", "position": [x, y, z], "scale": 1, "active": true, "children": [...]}
//
// Position, scale and active are optional.
type RigNode struct {
	Name     string
	Local    core.Position3D
	Scale    float64
	Active   bool
	Children []RigNode
}

// ParseRig parses a rig passed as host command args, quoted like frames.
func (p *Parser) ParseRig(data []string) ([]RigNode, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidRig)
	}
	raw := util.FixEscapeQuotes(util.TrimQuotes(data[0]))
	return p.ParseRigJSON([]byte(raw))
}

// ParseRigJSON parses a rig document: a single node object or an array of
// top-level nodes.
func (p *Parser) ParseRigJSON(raw []byte) ([]RigNode, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidRig)
	}
	res := gjson.ParseBytes(raw)
	switch {
	case res.IsObject():
		n, err := rigNode(res, "", 0)
		if err != nil {
			return nil, err
		}
		return []RigNode{n}, nil
	case res.IsArray():
		return rigNodes(res, "", 0)
	default:
		return nil, fmt.Errorf("%w: expected an object or array", ErrInvalidRig)
	}
}

func rigNodes(list gjson.Result, path string, depth int) ([]RigNode, error) {
	var out []RigNode
	var err error
	list.ForEach(func(_, v gjson.Result) bool {
		var n RigNode
		n, err = rigNode(v, path, depth)
		if err != nil {
			return false
		}
		out = append(out, n)
		return true
	})
	return out, err
}

func rigNode(v gjson.Result, parent string, depth int) (RigNode, error) {
	if depth >= maxRigDepth {
		return RigNode{}, fmt.Errorf("%w: nested deeper than %d", ErrInvalidRig, maxRigDepth)
	}
	if !v.IsObject() {
		return RigNode{}, fmt.Errorf("%w: node below %q is not an object", ErrInvalidRig, parent)
	}
	name := v.Get("name").String()
	if name == "" {
		return RigNode{}, fmt.Errorf("%w: node below %q has no name", ErrInvalidRig, parent)
	}
	path := name
	if parent != "" {
		path = parent + "/" + name
	}

	n := RigNode{Name: name, Scale: 1, Active: true}
	if pos := v.Get("position"); pos.Exists() {
		xyz := pos.Array()
		if len(xyz) != 3 {
			return RigNode{}, fmt.Errorf("%w: %s: position needs 3 components", ErrInvalidRig, path)
		}
		n.Local = core.Position3D{X: xyz[0].Float(), Y: xyz[1].Float(), Z: xyz[2].Float()}
	}
	if s := v.Get("scale"); s.Exists() {
		n.Scale = s.Float()
	}
	if a := v.Get("active"); a.Exists() {
		n.Active = a.Bool()
	}
	children, err := rigNodes(v.Get("children"), path, depth+1)
	if err != nil {
		return RigNode{}, err
	}
	n.Children = children
	return n, nil
}
