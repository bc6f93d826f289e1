package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAtEveryDepth(t *testing.T) {
	v := map[string]interface{}{
		"b": map[string]interface{}{"z": 1, "a": 2},
		"a": []interface{}{3, 2, 1},
	}
	out, err := MarshalString(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,2,1],"b":{"a":2,"z":1}}`, out)
}

func TestMarshalEmptyObject(t *testing.T) {
	out, err := MarshalString(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, out)
}

func TestMarshalNoTrailingNewline(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.False(t, len(out) > 0 && out[len(out)-1] == '\n')
}

func TestMarshalStructuralEqualityIgnoresKeyOrder(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2}
	b := map[string]interface{}{"y": 2, "x": 1}
	outA, err := MarshalString(a)
	require.NoError(t, err)
	outB, err := MarshalString(b)
	require.NoError(t, err)
	assert.Equal(t, outA, outB)
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	out, err := MarshalString(map[string]interface{}{"a": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>&"}`, out)
}

func TestMarshalIntegersHaveNoFractionalPart(t *testing.T) {
	out, err := MarshalString(map[string]interface{}{"n": 10})
	require.NoError(t, err)
	assert.Equal(t, `{"n":10}`, out)
}

func TestDecodeThenMarshalIsIdempotent(t *testing.T) {
	original := `{"a":1,"b":[true,false,null,"x"]}`
	v, err := Decode([]byte(original))
	require.NoError(t, err)
	out, err := MarshalString(v)
	require.NoError(t, err)
	assert.Equal(t, original, out)

	v2, err := Decode([]byte(out))
	require.NoError(t, err)
	out2, err := MarshalString(v2)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestMarshalStructRespectsJSONTags(t *testing.T) {
	type inner struct {
		Zeta  int `json:"zeta"`
		Alpha int `json:"alpha"`
	}
	out, err := MarshalString(inner{Zeta: 1, Alpha: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zeta":1}`, out)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} garbage`))
	assert.Error(t, err)
}
