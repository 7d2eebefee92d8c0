package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte("resource \"aws_s3_bucket\" \"b\" {}\n"), 0o644))
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	run("add", ".")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestClone(t *testing.T) {
	requireGit(t)
	src := initRepo(t)
	c := NewCloner(time.Minute, t.TempDir(), nil)

	dir, cleanup, err := c.Clone(context.Background(), "file://"+src, "main")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "main.tf"))

	cleanup()
	cleanup()
	assert.NoDirExists(t, dir)
}

func TestClone_Failure(t *testing.T) {
	requireGit(t)
	work := t.TempDir()
	c := NewCloner(time.Minute, work, nil)

	_, _, err := c.Clone(context.Background(), "file://"+filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git exited")

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed clone must not leave a checkout behind")
}

func TestClone_RejectsOptionInjection(t *testing.T) {
	c := NewCloner(time.Minute, t.TempDir(), nil)
	_, _, err := c.Clone(context.Background(), "--upload-pack=touch /tmp/x", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
	_, _, err = c.Clone(context.Background(), "https://example.com/r.git", "-x")
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("a", 600) + "\nfatal: boom"
	got := tail([]byte(long))
	assert.Len(t, got, maxErrOutput+2)
	assert.True(t, strings.HasSuffix(got, "fatal: boom"))
}
