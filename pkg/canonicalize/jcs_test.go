package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSKeyOrdering(t *testing.T) {
	out, err := JCS(map[string]any{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(out))
}

func TestJCSRespectsStructTags(t *testing.T) {
	type rec struct {
		Zulu  string `json:"zulu"`
		Alpha string `json:"alpha"`
		Skip  string `json:"-"`
	}
	out, err := JCS(rec{Zulu: "z", Alpha: "a", Skip: "hidden"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zulu":"z"}`, string(out))
}

func TestJCSNestedDeterminism(t *testing.T) {
	v := map[string]any{
		"outer": map[string]any{"y": []any{"a", "b"}, "x": 1},
		"list":  []any{map[string]any{"k2": true, "k1": false}},
	}
	first, err := JCS(v)
	require.NoError(t, err)
	second, err := JCS(v)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestCanonicalHashStable(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestJCSRejectsUnmarshalable(t *testing.T) {
	_, err := JCS(map[string]any{"fn": func() {}})
	assert.Error(t, err)
}
