package verifyrun

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdrvl/lock/pkg/canon"
	"github.com/cmdrvl/lock/pkg/lockfile"
	"github.com/cmdrvl/lock/pkg/lockhash"
)

func buildLockfile(t *testing.T, members []lockfile.Member) []byte {
	t.Helper()
	lf := &lockfile.Lockfile{
		Version:      lockfile.SchemaVersion,
		Created:      "2026-07-31T00:00:00Z",
		ToolVersions: map[string]string{"lock": "1.0.0"},
		Profiles:     []string{},
		Members:      members,
		Skipped:      []lockfile.SkippedEntry{},
		MemberCount:  uint64(len(members)),
		SkippedCount: 0,
	}
	h, err := lockhash.Compute(lf)
	require.NoError(t, err)
	lf.LockHash = h

	raw, err := canon.Marshal(lf)
	require.NoError(t, err)
	return raw
}

func memberFor(t *testing.T, dir, name, content string) lockfile.Member {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	sum := sha256.Sum256([]byte(content))
	return lockfile.Member{
		Path:      name,
		BytesHash: "sha256:" + hex.EncodeToString(sum[:]),
		Size:      uint64(len(content)),
	}
}

func TestRunVerifyOKWithoutRoot(t *testing.T) {
	raw := buildLockfile(t, []lockfile.Member{{Path: "a.csv", BytesHash: "sha256:aaaa", Size: 1}})
	report, env := Run(raw, Options{})
	require.Nil(t, env)
	assert.Equal(t, OutcomeOK, report.Outcome)
	assert.True(t, report.LockHash.Valid)
	assert.Nil(t, report.Members)
}

func TestRunVerifyOKWithRoot(t *testing.T) {
	dir := t.TempDir()
	m := memberFor(t, dir, "a.csv", "hello world")
	raw := buildLockfile(t, []lockfile.Member{m})

	report, env := Run(raw, Options{Root: dir, HasRoot: true})
	require.Nil(t, env)
	assert.Equal(t, OutcomeOK, report.Outcome)
	require.NotNil(t, report.Members)
	assert.Equal(t, 1, report.Members.Verified)
}

func TestRunVerifyDriftDetected(t *testing.T) {
	dir := t.TempDir()
	m := memberFor(t, dir, "a.csv", "hello world")
	raw := buildLockfile(t, []lockfile.Member{m})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("hello_world"), 0o644))

	report, env := Run(raw, Options{Root: dir, HasRoot: true})
	require.Nil(t, env)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, 1, report.Members.Failed)
}

func TestRunTamperedLockHashOmitsMembers(t *testing.T) {
	raw := buildLockfile(t, []lockfile.Member{{Path: "a.csv", BytesHash: "sha256:aaaa", Size: 1}})
	tampered := append([]byte(nil), raw...)
	// change a field that is not lock_hash: the tool_versions "lock" entry.
	s := string(tampered)
	s2 := replaceOnce(s, `"1.0.0"`, `"9.9.9"`)
	report, env := Run([]byte(s2), Options{})
	require.Nil(t, env)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.False(t, report.LockHash.Valid)
	assert.Nil(t, report.Members)
}

func TestRunRejectsUnsupportedVersion(t *testing.T) {
	raw := []byte(`{"lock_hash":"sha256:aa","members":[],"version":"lock.v9"}`)
	_, env := Run(raw, Options{})
	require.NotNil(t, env)
	assert.Equal(t, "E_UNSUPPORTED_VERSION", env.Refusal.Code)
}

func TestRunRejectsAbsoluteMemberPath(t *testing.T) {
	raw := []byte(`{"lock_hash":"sha256:aa","members":[{"path":"/etc/passwd","bytes_hash":"sha256:aa","size":1}],"version":"lock.v0"}`)
	_, env := Run(raw, Options{})
	require.NotNil(t, env)
	assert.Equal(t, "E_BAD_LOCKFILE", env.Refusal.Code)
}

func TestRunRejectsTraversalMemberPath(t *testing.T) {
	raw := []byte(`{"lock_hash":"sha256:aa","members":[{"path":"a/../b","bytes_hash":"sha256:aa","size":1}],"version":"lock.v0"}`)
	_, env := Run(raw, Options{})
	require.NotNil(t, env)
	assert.Equal(t, "E_BAD_LOCKFILE", env.Refusal.Code)
}

func TestRunRejectsUnknownAlgorithm(t *testing.T) {
	raw := []byte(`{"lock_hash":"sha256:aa","members":[{"path":"a.csv","bytes_hash":"md5:aa","size":1}],"version":"lock.v0"}`)
	_, env := Run(raw, Options{})
	require.NotNil(t, env)
	assert.Equal(t, "E_UNKNOWN_ALGORITHM", env.Refusal.Code)
}

func TestRunRootNotFound(t *testing.T) {
	raw := buildLockfile(t, []lockfile.Member{{Path: "a.csv", BytesHash: "sha256:aaaa", Size: 1}})
	_, env := Run(raw, Options{Root: "/nonexistent/path/xyz", HasRoot: true})
	require.NotNil(t, env)
	assert.Equal(t, "E_ROOT_NOT_FOUND", env.Refusal.Code)
}

func TestRecordWitnessAppendsOneLine(t *testing.T) {
	raw := buildLockfile(t, []lockfile.Member{{Path: "a.csv", BytesHash: "sha256:aaaa", Size: 1}})
	report, env := Run(raw, Options{})
	require.Nil(t, env)

	path := filepath.Join(t.TempDir(), "witness.jsonl")
	opts := Options{Root: "/data/set", HasRoot: true, Strict: true}
	err := RecordWitness(path, "1.0.0", opts, "lock.json", report, []byte(`{"outcome":"VERIFY_OK"}`))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"VERIFY_OK"`)
	assert.Contains(t, string(data), `"lock.json"`)
	assert.Contains(t, string(data), `"subcommand":"verify"`)
	assert.Contains(t, string(data), `"/data/set"`)
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, ExitCode(OutcomeOK))
	assert.Equal(t, 1, ExitCode(OutcomePartial))
	assert.Equal(t, 1, ExitCode(OutcomeFailed))
}

func replaceOnce(s, old, new string) string {
	idx := -1
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}
