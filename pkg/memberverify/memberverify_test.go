package memberverify

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdrvl/lock/pkg/lockfile"
)

func writeFile(t *testing.T, dir, name, content string) lockfile.Member {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	sum := sha256.Sum256([]byte(content))
	return lockfile.Member{
		Path:      name,
		BytesHash: "sha256:" + hex.EncodeToString(sum[:]),
		Size:      uint64(len(content)),
	}
}

func TestVerifySuccess(t *testing.T) {
	dir := t.TempDir()
	m := writeFile(t, dir, "a.csv", "hello world")

	res := Verify(dir, []lockfile.Member{m})
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Verified)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Skipped)
}

func TestVerifyHashMismatchSameLength(t *testing.T) {
	dir := t.TempDir()
	m := writeFile(t, dir, "a.csv", "hello world")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("hello_world"), 0o644))

	res := Verify(dir, []lockfile.Member{m})
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonHashMismatch, res.Failures[0].Reason)
}

func TestVerifyMissingFile(t *testing.T) {
	dir := t.TempDir()
	m := lockfile.Member{Path: "missing.csv", BytesHash: "sha256:aaaa", Size: 1}

	res := Verify(dir, []lockfile.Member{m})
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonMissing, res.Failures[0].Reason)
}

func TestVerifySizeMismatchSkipsHashing(t *testing.T) {
	dir := t.TempDir()
	m := writeFile(t, dir, "a.csv", "short")
	m.Size = 999

	res := Verify(dir, []lockfile.Member{m})
	require.Len(t, res.Failures, 1)
	assert.Equal(t, ReasonSizeMismatch, res.Failures[0].Reason)
}

func TestVerifyBlake3Algorithm(t *testing.T) {
	dir := t.TempDir()
	content := "hello world"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(content), 0o644))

	h, _, ok := hasherFor("blake3:deadbeef")
	require.True(t, ok)
	h.Write([]byte(content))
	want := hex.EncodeToString(h.Sum(nil))

	m := lockfile.Member{Path: "a.csv", BytesHash: "blake3:" + want, Size: uint64(len(content))}
	res := Verify(dir, []lockfile.Member{m})
	assert.Equal(t, 1, res.Verified)
}
