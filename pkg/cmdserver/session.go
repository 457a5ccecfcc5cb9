package cmdserver

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/mgutz/str"
	"github.com/samber/lo"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/hgpipe/hgpipe/pkg/utils"
)

// CapabilityRunCommand gates RunCommand; the child advertises it in the
// hello frame.
const CapabilityRunCommand = "runcommand"

type sessionState int

const (
	stateLaunching sessionState = iota
	stateHandshaking
	stateReady
	stateRunning
	stateClosed
)

// InputProvider supplies the bytes answering one input prompt. maxBytes is
// the cap announced by the child; longer returns are truncated to it.
// Returning no bytes signals EOF for the prompt. A non-nil error aborts the
// command and tears the session down, because a partial exchange leaves the
// child in an unknown state.
type InputProvider func(maxBytes uint32) ([]byte, error)

// OutputSinks routes data frames to caller-owned writers. Only Output, Error
// and Debug may appear as keys; frames on channels without a sink are
// discarded.
type OutputSinks map[ChannelTag]io.Writer

// InputProviders routes input prompts to caller-supplied providers. Only
// LineInput and ByteInput may appear as keys; prompts without a provider get
// an empty (EOF) reply.
type InputProviders map[ChannelTag]InputProvider

// ConfigField is one line of the child's effective configuration:
// section.key=value.
type ConfigField struct {
	Section string
	Key     string
	Value   string
}

// Session is a live connection to one command server child. Everything on a
// session is serialised onto the child's two pipes; open several sessions
// for parallelism.
type Session struct {
	Log *logrus.Entry

	server *ServerProcess
	in     io.Writer
	out    *bufio.Reader

	encoding     string
	capabilities []string

	// runMu serialises RunCommand, Close and everything built on them, so
	// exactly one command owns the pipes at a time.
	runMu deadlock.Mutex

	stateMu   sync.Mutex
	state     sessionState
	cancelled bool

	lazyMu        sync.Mutex
	cachedRoot    *string
	cachedVersion *string
	cachedConfig  []ConfigField
}

// Open launches a command server child and performs the protocol handshake.
// The caller owns the returned session and must Close it; a session dropped
// without Close still reaps its child via a finalizer.
func Open(log *logrus.Entry, opts *OpenOptions) (*Session, error) {
	options := opts.normalised()

	server, err := startServer(log, options, exec.Command)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Log:    log,
		server: server,
		in:     server.stdin,
		out:    bufio.NewReader(server.stdout),
		state:  stateHandshaking,
	}

	if err := session.handshake(); err != nil {
		_ = server.close()
		session.setState(stateClosed)
		return nil, err
	}

	session.setState(stateReady)
	runtime.SetFinalizer(session, func(leaked *Session) {
		_ = leaked.server.close()
	})

	log.WithFields(logrus.Fields{
		"encoding":     session.encoding,
		"capabilities": session.capabilities,
	}).Debug("command server ready")

	return session, nil
}

// handshake consumes the single unsolicited hello frame and fixes the
// session's encoding and capability set for its whole lifetime.
func (s *Session) handshake() error {
	frame, err := readFrame(s.out)
	if err != nil {
		if tail := s.server.stderrTail(); tail != "" {
			return NewServerError(fmt.Sprintf("bad handshake: %s", tail), err)
		}
		return err
	}
	if frame.Channel != ChannelOutput {
		return NewServerError(fmt.Sprintf("bad handshake: hello arrived on %s channel", frame.Channel), nil)
	}

	encoding, capabilities, err := parseHello(frame.Payload)
	if err != nil {
		return err
	}

	s.encoding = encoding
	s.capabilities = capabilities

	return nil
}

// parseHello splits the hello payload into its newline-delimited
// "key: value" headers. encoding and capabilities are both required; other
// keys (pid, pgid) are ignored.
func parseHello(payload []byte) (string, []string, error) {
	headers := map[string]string{}
	for _, line := range strings.Split(string(payload), "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		headers[key] = value
	}

	encoding, ok := headers["encoding"]
	if !ok {
		return "", nil, NewServerError("bad handshake: missing encoding", nil)
	}
	capabilities, ok := headers["capabilities"]
	if !ok {
		return "", nil, NewServerError("bad handshake: missing capabilities", nil)
	}

	return encoding, strings.Fields(capabilities), nil
}

// Encoding returns the text encoding negotiated at handshake.
func (s *Session) Encoding() string {
	return s.encoding
}

// Capabilities returns a copy of the capability tokens the child advertised.
func (s *Session) Capabilities() []string {
	return append([]string(nil), s.capabilities...)
}

// HasCapability reports whether the child advertised the named capability.
func (s *Session) HasCapability(name string) bool {
	return lo.Count(s.capabilities, name) > 0
}

// RunCommand submits argv to the child and pumps frames until the result
// arrives, routing data frames to the given sinks and answering input
// prompts through the given providers. The returned value is the command's
// exit code; interpreting it is the caller's business. Any protocol failure
// tears the session down.
func (s *Session) RunCommand(argv []string, sinks OutputSinks, providers InputProviders) (int32, error) {
	if len(argv) == 0 {
		return 0, &InvalidArgumentError{Reason: "empty argv"}
	}
	if err := validateRouting(sinks, providers); err != nil {
		return 0, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.currentState() == stateClosed {
		return 0, ErrSessionClosed
	}
	if !s.HasCapability(CapabilityRunCommand) {
		return 0, NewServerError("unsupported capability: runcommand", nil)
	}

	s.setState(stateRunning)
	s.Log.WithField("argv", argv).Debug("runcommand")

	code, err := s.pumpCommand(argv, sinks, providers)
	if err != nil {
		s.teardown()
		if s.wasCancelled() {
			return 0, ErrCancelled
		}
		return 0, err
	}

	s.setState(stateReady)

	return code, nil
}

// validateRouting rejects sinks and providers registered on channels that
// can never receive them.
func validateRouting(sinks OutputSinks, providers InputProviders) error {
	for channel := range sinks {
		if class, known := channelPolicy[channel]; !known || class != classData {
			return &InvalidArgumentError{Reason: fmt.Sprintf("channel %s cannot take an output sink", channel)}
		}
	}
	for channel := range providers {
		if class, known := channelPolicy[channel]; !known || class != classPrompt {
			return &InvalidArgumentError{Reason: fmt.Sprintf("channel %s cannot take an input provider", channel)}
		}
	}

	return nil
}

// pumpCommand writes the request as a single flush and then dispatches
// inbound frames by channel class until the result arrives.
func (s *Session) pumpCommand(argv []string, sinks OutputSinks, providers InputProviders) (int32, error) {
	if _, err := s.in.Write(encodeRunRequest(argv)); err != nil {
		return 0, NewServerError("writing command", WrapError(err))
	}

	for {
		frame, err := readFrame(s.out)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, NewServerError("server terminated early", err)
			}
			return 0, err
		}

		switch channelPolicy[frame.Channel] {
		case classResult:
			if len(frame.Payload) != 4 {
				return 0, NewServerError(fmt.Sprintf("result frame carried %d bytes, want 4", len(frame.Payload)), nil)
			}
			return int32(binary.BigEndian.Uint32(frame.Payload)), nil

		case classData:
			sink, ok := sinks[frame.Channel]
			if !ok {
				continue
			}
			if _, err := sink.Write(frame.Payload); err != nil {
				return 0, NewServerError(fmt.Sprintf("sink for %s channel failed", frame.Channel), WrapError(err))
			}

		case classPrompt:
			if err := s.answerPrompt(frame, providers); err != nil {
				return 0, err
			}
		}
	}
}

// answerPrompt replies to one L or I frame. Missing providers answer with an
// empty reply, which the child reads as EOF for the prompt.
func (s *Session) answerPrompt(frame Frame, providers InputProviders) error {
	maxBytes := frame.replyCap()

	var reply []byte
	if provider, ok := providers[frame.Channel]; ok {
		data, err := provider(maxBytes)
		if err != nil {
			return NewServerError(fmt.Sprintf("input provider for %s channel failed", frame.Channel), WrapError(err))
		}
		reply = data
	}
	if len(reply) > int(maxBytes) {
		reply = reply[:maxBytes]
	}

	if _, err := s.in.Write(encodeReply(reply)); err != nil {
		return NewServerError("writing input reply", WrapError(err))
	}

	return nil
}

// Close terminates the child and invalidates the session, waiting for any
// in-flight command to finish first. Closing twice is a no-op.
func (s *Session) Close() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.stateMu.Lock()
	if s.state == stateClosed {
		s.stateMu.Unlock()
		return nil
	}
	s.state = stateClosed
	s.stateMu.Unlock()

	runtime.SetFinalizer(s, nil)
	s.Log.Debug("closing command server session")

	return s.server.close()
}

// Cancel interrupts the in-flight command, if any, without waiting for it:
// the child's stdin is closed, the supervisor's grace window and kill reap
// the child, and the interrupted RunCommand returns ErrCancelled. Cancelling
// an idle or closed session just closes it.
func (s *Session) Cancel() error {
	s.stateMu.Lock()
	if s.state == stateClosed {
		s.stateMu.Unlock()
		return nil
	}
	s.cancelled = true
	s.state = stateClosed
	s.stateMu.Unlock()

	s.Log.Warn("cancelling command server session")
	runtime.SetFinalizer(s, nil)

	return s.server.close()
}

// RunString splits a shell-style command line with str.ToArgv and runs it,
// capturing output. Convenience for diagnostic callers.
func (s *Session) RunString(cmdline string) (CommandResult, error) {
	return s.GetCommandOutput(str.ToArgv(cmdline), nil)
}

// Root returns the root of the repository the child serves. Cached after the
// first query.
func (s *Session) Root() (string, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()

	if s.cachedRoot != nil {
		return *s.cachedRoot, nil
	}

	result, err := s.GetCommandOutput([]string{"root"}, nil)
	if err != nil {
		return "", err
	}
	if err := EnsureExitCode(result, 0, "hg root failed"); err != nil {
		return "", err
	}

	root := strings.TrimRight(result.Stdout, "\n")
	s.cachedRoot = &root

	return root, nil
}

var versionBanner = regexp.MustCompile(`\(version ([^)]+)\)`)

// Version returns the child's Mercurial version, e.g. "6.8.1". Cached after
// the first query.
func (s *Session) Version() (string, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()

	if s.cachedVersion != nil {
		return *s.cachedVersion, nil
	}

	result, err := s.GetCommandOutput([]string{"version", "-q"}, nil)
	if err != nil {
		return "", err
	}
	if err := EnsureExitCode(result, 0, "hg version failed"); err != nil {
		return "", err
	}

	match := versionBanner.FindStringSubmatch(result.Stdout)
	if match == nil {
		return "", WrapError(fmt.Errorf("unrecognised version banner: %q", utils.FirstLine(result.Stdout)))
	}

	s.cachedVersion = &match[1]

	return match[1], nil
}

// Configuration returns the child's effective configuration, one field per
// showconfig line. Cached after the first query.
func (s *Session) Configuration() ([]ConfigField, error) {
	s.lazyMu.Lock()
	defer s.lazyMu.Unlock()

	if s.cachedConfig != nil {
		return append([]ConfigField(nil), s.cachedConfig...), nil
	}

	result, err := s.GetCommandOutput([]string{"showconfig"}, nil)
	if err != nil {
		return nil, err
	}
	if err := EnsureExitCode(result, 0, "hg showconfig failed"); err != nil {
		return nil, err
	}

	fields := lo.FilterMap(utils.SplitLines(result.Stdout), func(line string, _ int) (ConfigField, bool) {
		return parseConfigField(line)
	})

	s.cachedConfig = fields

	return append([]ConfigField(nil), fields...), nil
}

func parseConfigField(line string) (ConfigField, bool) {
	name, value, found := strings.Cut(line, "=")
	if !found {
		return ConfigField{}, false
	}
	section, key, found := strings.Cut(name, ".")
	if !found {
		return ConfigField{}, false
	}

	return ConfigField{Section: section, Key: key, Value: value}, true
}

func (s *Session) teardown() {
	_ = s.server.close()
	s.setState(stateClosed)
	runtime.SetFinalizer(s, nil)
}

func (s *Session) setState(state sessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *Session) currentState() sessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) wasCancelled() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cancelled
}
