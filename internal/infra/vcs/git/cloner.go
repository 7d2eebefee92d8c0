package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

const maxErrOutput = 512

// Cloner checks out repositories with the git binary.
type Cloner struct {
	Timeout time.Duration
	WorkDir string // parent for checkouts; "" uses os.TempDir
	Binary  string
	log     *zap.SugaredLogger
}

func NewCloner(timeout time.Duration, workDir string, log *zap.SugaredLogger) *Cloner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cloner{Timeout: timeout, WorkDir: workDir, Binary: "git", log: log}
}

// Clone runs a shallow clone bounded by Timeout. The returned cleanup removes
// the checkout and is safe to call more than once.
func (c *Cloner) Clone(ctx context.Context, repoURL, ref string) (string, func(), error) {
	if repoURL == "" || strings.HasPrefix(repoURL, "-") {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, repoURL)
	}
	if ref != "" && strings.HasPrefix(ref, "-") {
		return "", nil, fmt.Errorf("%w: ref %q", domain.ErrInvalidTarget, ref)
	}

	if c.WorkDir != "" {
		if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(c.WorkDir, "dg-clone-*")
	if err != nil {
		return "", nil, fmt.Errorf("create checkout dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			c.log.Warnw("remove checkout", "dir", dir, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := []string{"clone", "--depth", "1", "--single-branch", "--no-tags"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, "--", repoURL, dir)

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		cleanup()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", nil, fmt.Errorf("clone %s: timed out after %s", repoURL, c.Timeout)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", nil, fmt.Errorf("clone %s: git exited %d: %s", repoURL, ee.ExitCode(), tail(out))
		}
		return "", nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}
	c.log.Debugw("repository cloned", "url", repoURL, "ref", ref, "dir", dir, "duration", time.Since(start))
	return dir, cleanup, nil
}

// tail keeps the last maxErrOutput bytes of git output on one line.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxErrOutput {
		s = s[len(s)-maxErrOutput:]
	}
	return strings.ReplaceAll(s, "\n", " | ")
}
