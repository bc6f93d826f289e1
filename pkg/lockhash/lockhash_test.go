package lockhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministicAndKeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"lock_hash": "", "members": []interface{}{"a", "b"}, "version": "lock.v0"}
	b := map[string]interface{}{"version": "lock.v0", "members": []interface{}{"a", "b"}, "lock_hash": "stale"}
	ha, err := Compute(a)
	require.NoError(t, err)
	hb, err := Compute(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, ha)
}

func TestVerifyStructRoundTrip(t *testing.T) {
	obj := map[string]interface{}{"version": "lock.v0", "members": []interface{}{}}
	h, err := Compute(obj)
	require.NoError(t, err)
	obj["lock_hash"] = h

	ok, err := VerifyStruct(obj)
	require.NoError(t, err)
	assert.True(t, ok)

	obj["members"] = []interface{}{"tampered"}
	ok, err = VerifyStruct(obj)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyJSONRoundTrip(t *testing.T) {
	obj := map[string]interface{}{"version": "lock.v0", "note": "x"}
	h, err := Compute(obj)
	require.NoError(t, err)
	obj["lock_hash"] = h

	raw := `{"lock_hash":"` + h + `","note":"x","version":"lock.v0"}`
	ok, err := VerifyJSON([]byte(raw))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyJSONDetectsTampering(t *testing.T) {
	obj := map[string]interface{}{"version": "lock.v0"}
	h, err := Compute(obj)
	require.NoError(t, err)

	raw := `{"lock_hash":"` + h + `","version":"lock.v1"}`
	ok, err := VerifyJSON([]byte(raw))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyJSONReportsParseErrors(t *testing.T) {
	_, err := VerifyJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestVerifyJSONRejectsNonObjectTopLevel(t *testing.T) {
	_, err := VerifyJSON([]byte(`[1,2,3]`))
	assert.Error(t, err)
}
