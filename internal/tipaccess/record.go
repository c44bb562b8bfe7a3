package tipaccess

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// foldName normalizes a field name so that TipPosition, tipPosition and
// tip_position compare equal.
func foldName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MapRecord is a record backed by a plain map.
type MapRecord map[string]any

// Field implements core.Record. Exact keys win over folded matches.
func (m MapRecord) Field(name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	want := foldName(name)
	for k, v := range m {
		if foldName(k) == want {
			return v, true
		}
	}
	return nil, false
}

// JSONRecord is a record over a JSON object.
type JSONRecord struct {
	gjson.Result
}

// NewJSONRecord wraps raw JSON object bytes.
func NewJSONRecord(raw []byte) JSONRecord {
	return JSONRecord{Result: gjson.ParseBytes(raw)}
}

// Field implements core.Record. Lookup is tolerant of naming variance.
func (r JSONRecord) Field(name string) (any, bool) {
	if !r.IsObject() {
		return nil, false
	}
	if v := r.Get(gjson.Escape(name)); v.Exists() {
		return v, true
	}

	want := foldName(name)
	var found gjson.Result
	r.ForEach(func(key, value gjson.Result) bool {
		if foldName(key.String()) == want {
			found = value
			return false
		}
		return true
	})
	if !found.Exists() {
		return nil, false
	}
	return found, true
}

var (
	_ core.Record = MapRecord(nil)
	_ core.Record = JSONRecord{}
)
