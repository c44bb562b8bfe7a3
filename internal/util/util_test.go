package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "abc", TrimQuotes(`"abc"`))
	assert.Equal(t, "abc", TrimQuotes("abc"))
	assert.Equal(t, "", TrimQuotes(`""`))
}

func TestFixEscapeQuotes(t *testing.T) {
	assert.Equal(t, `say "hi"`, FixEscapeQuotes(`say ""hi""`))
}

func TestCleanArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"Rig"`, "Rig"},
		{` "Left Hand" `, "Left Hand"},
		{`"{""id"":1}"`, `{"id":1}`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanArg(tt.in))
		})
	}
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "Demo_Session_10_30", SafeFileName("Demo Session 10:30"))
	assert.Equal(t, "a_b_c", SafeFileName(`a/b\c`))
	assert.Equal(t, "unnamed", SafeFileName("  "))
}
