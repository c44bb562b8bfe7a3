package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"version", `{"serviceVersion":"5.0.0","version":7}`, KindVersion},
		{"frame with hands", `{"id":1,"hands":[],"pointables":[]}`, KindFrame},
		{"frame with pointables only", `{"id":1,"pointables":[]}`, KindFrame},
		{"event", `{"event":{"type":"deviceEvent","state":{}}}`, KindEvent},
		{"unknown object", `{"foo":1}`, KindUnknown},
		{"array", `[1,2]`, KindUnknown},
		{"invalid", `{"hands":`, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.raw)))
		})
	}
}

func TestControlMessageOmitsUnset(t *testing.T) {
	data, err := json.Marshal(Focused(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"focused":true}`, string(data))

	data, err = json.Marshal(Background(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"background":false}`, string(data))
}
