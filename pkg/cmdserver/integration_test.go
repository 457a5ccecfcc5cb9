//go:build integration

package cmdserver

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgpipe/hgpipe/pkg/utils"
)

// Integration tests require a real hg binary.
// Run with: go test -tags=integration ./pkg/cmdserver/...

func openIntegrationSession(t *testing.T, repoPath string) *Session {
	t.Helper()

	if _, err := exec.LookPath("hg"); err != nil {
		t.Skip("No hg binary available")
	}

	session, err := Open(NewDummyLog(), &OpenOptions{
		RepoPath: repoPath,
		Encoding: "UTF-8",
		ConfigOverrides: []string{
			"ui.username=test <test@example.com>",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func writeRepoFile(t *testing.T, repo, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repo, name), []byte(content), 0o644))
}

// TestIntegrationHandshake verifies the hello frame against a real server.
func TestIntegrationHandshake(t *testing.T) {
	session := openIntegrationSession(t, "")

	assert.NotEmpty(t, session.Encoding())
	assert.True(t, session.HasCapability(CapabilityRunCommand))

	version, err := session.Version()
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

// TestIntegrationInitThenRoot inits a repository through one session and
// queries its root through another.
func TestIntegrationInitThenRoot(t *testing.T) {
	repo := t.TempDir()

	plain := openIntegrationSession(t, "")
	code, err := plain.RunCommand([]string{"init", repo}, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	_, err = os.Stat(filepath.Join(repo, ".hg"))
	require.NoError(t, err)

	bound := openIntegrationSession(t, repo)
	result, err := bound.GetCommandOutput([]string{"root"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.ExitCode)
	assert.Equal(t, repo+"\n", result.Stdout)
}

// TestIntegrationAddStatusCommitLog walks a file through add, status, commit
// and log.
func TestIntegrationAddStatusCommitLog(t *testing.T) {
	repo := t.TempDir()

	plain := openIntegrationSession(t, "")
	code, err := plain.RunCommand([]string{"init", repo}, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	session := openIntegrationSession(t, repo)
	writeRepoFile(t, repo, "foo", "")
	writeRepoFile(t, repo, "bar", "")

	code, err = session.RunCommand([]string{"add", "foo", "bar"}, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, code)

	result, err := session.GetCommandOutput([]string{"status"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "A foo\n")
	assert.Contains(t, result.Stdout, "A bar\n")

	code, err = session.RunCommand([]string{"commit", "-m", "msg", "-u", "user"}, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, code)

	result, err = session.GetCommandOutput([]string{"log", "--style", "xml"}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "<msg xml:space=\"preserve\">msg</msg>")
	assert.Equal(t, 1, strings.Count(result.Stdout, "<logentry"))
}

// TestIntegrationDiffAfterModify checks the exact unified diff hg prints for
// a one-line change.
func TestIntegrationDiffAfterModify(t *testing.T) {
	repo := t.TempDir()

	plain := openIntegrationSession(t, "")
	code, err := plain.RunCommand([]string{"init", repo}, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	session := openIntegrationSession(t, repo)
	writeRepoFile(t, repo, "foo", "1\n")

	code, err = session.RunCommand([]string{"add", "foo"}, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	code, err = session.RunCommand([]string{"commit", "-m", "msg", "-u", "user"}, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, code)

	writeRepoFile(t, repo, "foo", "2\n")

	result, err := session.GetCommandOutput([]string{"diff", "foo"}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, result.ExitCode)

	lines := utils.SplitLines(result.Stdout)
	require.Len(t, lines, 6)
	assert.Equal(t, "@@ -1,1 +1,1 @@", lines[3])
	assert.Equal(t, "-1", lines[4])
	assert.Equal(t, "+2", lines[5])
}
