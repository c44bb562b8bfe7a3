// Package tipaccess extracts fingertip positions from tracking records whose
// schema varies across provider versions. Each lookup is an explicit
// strategy tried in order; nothing is introspected at runtime.
package tipaccess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/OCAP2/tiptrails/pkg/core"
)

var (
	// ErrNoTipField is returned when no strategy field exists on the record.
	ErrNoTipField = errors.New("no tip position field on record")
	// ErrNotAVector is returned when a field cannot be read as three numbers.
	ErrNotAVector = errors.New("value is not a 3D vector")
)

// DefaultUnitScale converts provider millimetres to metres.
const DefaultUnitScale = 0.001

// StrategyKind tags an extraction strategy.
type StrategyKind uint8

const (
	StrategyPrimary StrategyKind = iota + 1
	StrategyFallback
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyPrimary:
		return "primary"
	case StrategyFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Strategy reads the tip position from one named field.
type Strategy struct {
	Kind  StrategyKind
	Field string
}

// DefaultStrategies try the tip position, then the next-joint position.
var DefaultStrategies = []Strategy{
	{Kind: StrategyPrimary, Field: "tipPosition"},
	{Kind: StrategyFallback, Field: "nextJoint"},
}

// Finger names tried, in index order, when a hand has no finger collection.
var namedFingers = []string{"thumb", "index", "middle", "ring", "pinky"}

// Tip is one extracted endpoint, still in provider-local space.
type Tip struct {
	Key   core.EndpointKey
	Local core.Position3D
	// Strategy is the kind of strategy that produced Local.
	Strategy StrategyKind
}

// Adapter extracts tips with a fixed strategy list and unit scale.
type Adapter struct {
	strategies []Strategy
	scale      float64
}

// New returns an adapter. Empty strategies use DefaultStrategies and a zero
// scale uses DefaultUnitScale.
func New(scale float64, strategies ...Strategy) *Adapter {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	if scale == 0 {
		scale = DefaultUnitScale
	}
	return &Adapter{strategies: strategies, scale: scale}
}

// TipPosition resolves a finger record's tip, scaled to the target unit.
func (a *Adapter) TipPosition(finger core.Record) (core.Position3D, StrategyKind, error) {
	if finger == nil {
		return core.Position3D{}, 0, ErrNoTipField
	}

	lastErr := ErrNoTipField
	for _, s := range a.strategies {
		v, ok := finger.Field(s.Field)
		if !ok {
			continue
		}
		p, err := Vector(v)
		if err != nil {
			lastErr = fmt.Errorf("%s field %q: %w", s.Kind, s.Field, err)
			continue
		}
		return p.Scale(a.scale), s.Kind, nil
	}
	return core.Position3D{}, 0, lastErr
}

// HandID reads the hand identity; any failure yields 0.
func HandID(hand core.Record) int {
	return intField(hand, "id")
}

// FingerIndex reads the finger type (0 thumb .. 4 pinky), falling back to an
// "index" field. Any failure yields 0, so unidentifiable fingers of one hand
// share a key; that collision is a known limitation.
func FingerIndex(finger core.Record) int {
	if _, ok := finger.Field("type"); ok {
		return intField(finger, "type")
	}
	return intField(finger, "index")
}

func intField(r core.Record, name string) int {
	v, ok := r.Field(name)
	if !ok {
		return 0
	}
	if res, ok := v.(gjson.Result); ok {
		v = res.Value()
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		f, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return i
}

// Chirality reads isLeft/isRight flags, then a "type" string.
func Chirality(hand core.Record) core.Chirality {
	if boolField(hand, "isLeft") {
		return core.ChiralityLeft
	}
	if boolField(hand, "isRight") {
		return core.ChiralityRight
	}
	v, ok := hand.Field("type")
	if !ok {
		return core.ChiralityUnknown
	}
	if res, ok := v.(gjson.Result); ok {
		v = res.Value()
	}
	switch strings.ToLower(cast.ToString(v)) {
	case "left":
		return core.ChiralityLeft
	case "right":
		return core.ChiralityRight
	default:
		return core.ChiralityUnknown
	}
}

func boolField(r core.Record, name string) bool {
	v, ok := r.Field(name)
	if !ok {
		return false
	}
	if res, ok := v.(gjson.Result); ok {
		v = res.Value()
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// Tips lists the hand's fingertips keyed by SyntheticKey(handID, finger).
// A finger whose position cannot be extracted is skipped and counted; the
// rest of the hand is still processed.
func (a *Adapter) Tips(hand core.Record) (tips []Tip, skipped int) {
	handID := HandID(hand)

	if coll, ok := hand.Field("fingers"); ok {
		if fingers, ok := Records(coll); ok {
			for _, f := range fingers {
				p, kind, err := a.TipPosition(f)
				if err != nil {
					skipped++
					continue
				}
				tips = append(tips, Tip{Key: core.SyntheticKey(handID, FingerIndex(f)), Local: p, Strategy: kind})
			}
			return tips, skipped
		}
	}

	for i, name := range namedFingers {
		v, ok := hand.Field(name)
		if !ok {
			continue
		}
		f, ok := asRecord(v)
		if !ok {
			skipped++
			continue
		}
		p, kind, err := a.TipPosition(f)
		if err != nil {
			skipped++
			continue
		}
		tips = append(tips, Tip{Key: core.SyntheticKey(handID, i), Local: p, Strategy: kind})
	}
	return tips, skipped
}

// Records converts a collection value into records.
func Records(v any) ([]core.Record, bool) {
	switch c := v.(type) {
	case []core.Record:
		return c, true
	case []MapRecord:
		out := make([]core.Record, len(c))
		for i := range c {
			out[i] = c[i]
		}
		return out, true
	case []map[string]any:
		out := make([]core.Record, len(c))
		for i := range c {
			out[i] = MapRecord(c[i])
		}
		return out, true
	case []any:
		out := make([]core.Record, 0, len(c))
		for _, item := range c {
			if r, ok := asRecord(item); ok {
				out = append(out, r)
			}
		}
		return out, true
	case gjson.Result:
		if !c.IsArray() {
			return nil, false
		}
		var out []core.Record
		c.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() {
				out = append(out, JSONRecord{Result: value})
			}
			return true
		})
		return out, true
	default:
		return nil, false
	}
}

func asRecord(v any) (core.Record, bool) {
	switch r := v.(type) {
	case core.Record:
		return r, true
	case map[string]any:
		return MapRecord(r), true
	case gjson.Result:
		if r.IsObject() {
			return JSONRecord{Result: r}, true
		}
	}
	return nil, false
}

// Vector decomposes v into three numeric components.
func Vector(v any) (core.Position3D, error) {
	switch t := v.(type) {
	case core.Position3D:
		return t, nil
	case *core.Position3D:
		if t == nil {
			return core.Position3D{}, ErrNotAVector
		}
		return *t, nil
	case [3]float64:
		return core.Position3D{X: t[0], Y: t[1], Z: t[2]}, nil
	case []float64:
		if len(t) < 3 {
			return core.Position3D{}, ErrNotAVector
		}
		return core.Position3D{X: t[0], Y: t[1], Z: t[2]}, nil
	case []any:
		if len(t) < 3 {
			return core.Position3D{}, ErrNotAVector
		}
		return fromComponents(t[0], t[1], t[2])
	case gjson.Result:
		if t.IsArray() {
			arr := t.Array()
			if len(arr) < 3 {
				return core.Position3D{}, ErrNotAVector
			}
			return fromComponents(arr[0].Value(), arr[1].Value(), arr[2].Value())
		}
		if t.IsObject() {
			return Vector(JSONRecord{Result: t})
		}
		return core.Position3D{}, ErrNotAVector
	case map[string]any:
		return Vector(MapRecord(t))
	case core.Record:
		x, okx := t.Field("x")
		y, oky := t.Field("y")
		z, okz := t.Field("z")
		if !okx || !oky || !okz {
			return core.Position3D{}, ErrNotAVector
		}
		return fromComponents(unwrap(x), unwrap(y), unwrap(z))
	default:
		return core.Position3D{}, ErrNotAVector
	}
}

func unwrap(v any) any {
	if res, ok := v.(gjson.Result); ok {
		if res.Type == gjson.Null {
			return nil
		}
		return res.Value()
	}
	return v
}

func fromComponents(x, y, z any) (core.Position3D, error) {
	var out [3]float64
	for i, c := range [3]any{x, y, z} {
		if c == nil {
			return core.Position3D{}, ErrNotAVector
		}
		if _, isBool := c.(bool); isBool {
			return core.Position3D{}, ErrNotAVector
		}
		f, err := cast.ToFloat64E(c)
		if err != nil {
			return core.Position3D{}, fmt.Errorf("%w: component %d: %v", ErrNotAVector, i, err)
		}
		out[i] = f
	}
	p := core.Position3D{X: out[0], Y: out[1], Z: out[2]}
	if !p.IsFinite() {
		return core.Position3D{}, ErrNotAVector
	}
	return p, nil
}
