package cmdserver

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jesseduffield/kill"
	"github.com/sirupsen/logrus"
)

// stderrTailLimit bounds how much of the child's stderr we retain for
// diagnostics.
const stderrTailLimit = 4096

// ServerProcess owns the hg child process and all three of its pipes. It is
// created by startServer and released exactly once by close, no matter how
// many exit paths race to it.
type ServerProcess struct {
	Log *logrus.Entry

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderr     *tailBuffer
	stderrDone chan struct{}

	grace time.Duration

	stdinOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// buildServerArgs assembles the child's argument vector from the options.
func buildServerArgs(opts OpenOptions) []string {
	args := []string{"serve", "--cmdserver", "pipe"}
	if opts.RepoPath != "" {
		args = append(args, "-R", opts.RepoPath)
	}
	if len(opts.ConfigOverrides) > 0 {
		args = append(args, "--config", strings.Join(opts.ConfigOverrides, ","))
	}

	return args
}

// serverEnv propagates the parent environment unchanged, except that an
// explicit encoding overrides HGENCODING for the child.
func serverEnv(opts OpenOptions) []string {
	env := os.Environ()
	if opts.Encoding != "" {
		env = append(env, "HGENCODING="+opts.Encoding)
	}

	return env
}

// startServer launches the command server child and takes ownership of its
// pipes. command is injectable so tests can swap the executable out.
func startServer(log *logrus.Entry, opts OpenOptions, command func(string, ...string) *exec.Cmd) (*ServerProcess, error) {
	args := buildServerArgs(opts)
	cmd := command(opts.HgBinary, args...)
	cmd.Env = serverEnv(opts)
	kill.PrepareForChildren(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, NewLaunchError(opts.HgBinary, WrapError(err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewLaunchError(opts.HgBinary, WrapError(err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, NewLaunchError(opts.HgBinary, WrapError(err))
	}

	if err := cmd.Start(); err != nil {
		return nil, NewLaunchError(opts.HgBinary, WrapError(err))
	}

	server := &ServerProcess{
		Log:        log,
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     newTailBuffer(stderrTailLimit),
		stderrDone: make(chan struct{}),
		grace:      opts.GraceTimeout,
	}

	go func() {
		defer close(server.stderrDone)
		_, _ = io.Copy(server.stderr, stderr)
	}()

	log.WithFields(logrus.Fields{
		"binary": opts.HgBinary,
		"args":   args,
	}).Debug("launched command server")

	return server, nil
}

// closeStdin politely asks the child to exit: the command server quits when
// its stdin reaches EOF. Safe to call more than once.
func (s *ServerProcess) closeStdin() {
	s.stdinOnce.Do(func() {
		_ = s.stdin.Close()
	})
}

// stderrTail returns whatever the child last wrote to stderr, for LaunchError
// and handshake diagnostics.
func (s *ServerProcess) stderrTail() string {
	if s.stderr == nil {
		return ""
	}

	return strings.TrimSpace(s.stderr.String())
}

// close releases the child: stdin is closed first, and if the child is still
// alive once the grace window lapses it is force-killed and reaped.
// Idempotent and safe from any goroutine.
func (s *ServerProcess) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown()
	})

	return s.closeErr
}

func (s *ServerProcess) shutdown() error {
	s.closeStdin()

	// Sessions built over raw pipes in tests have no child to reap.
	if s.cmd == nil {
		if s.stdout != nil {
			_ = s.stdout.Close()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-time.After(s.grace):
		s.Log.Warn("command server still alive after grace window, killing it")
		if err := kill.Kill(s.cmd); err != nil {
			s.Log.WithError(err).Warn("failed to kill command server")
		}
		waitErr = <-done
	}

	<-s.stderrDone

	if waitErr != nil {
		// A non-zero exit status or a kill at shutdown is not a failure of
		// the release itself.
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return WrapError(waitErr)
		}
		s.Log.WithField("status", exitErr.String()).Debug("command server exited")
	}

	return nil
}

// tailBuffer keeps the last capacity bytes written to it.
type tailBuffer struct {
	mu       sync.Mutex
	capacity int
	buf      []byte
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{capacity: capacity}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if overflow := len(t.buf) - t.capacity; overflow > 0 {
		t.buf = t.buf[overflow:]
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.buf)
}
