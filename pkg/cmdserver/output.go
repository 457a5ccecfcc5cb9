package cmdserver

import (
	"bytes"
	"strings"

	"github.com/spkg/bom"
	"golang.org/x/text/encoding/ianaindex"
)

// CommandResult is the captured outcome of one command: stdout and stderr
// decoded per the session's negotiated encoding, plus the exit code.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int32
}

// GetCommandOutput runs argv with in-memory buffers bound to the Output and
// Error channels, forwarding providers unchanged, and decodes both captures.
// A non-zero exit code is data here, not an error; EnsureExitCode converts
// it when the caller wants a failure.
func (s *Session) GetCommandOutput(argv []string, providers InputProviders) (CommandResult, error) {
	var stdout, stderr bytes.Buffer

	sinks := OutputSinks{
		ChannelOutput: &stdout,
		ChannelError:  &stderr,
	}

	code, err := s.RunCommand(argv, sinks, providers)
	if err != nil {
		return CommandResult{}, err
	}

	return CommandResult{
		Stdout:   s.decodeOutput(stdout.Bytes()),
		Stderr:   s.decodeOutput(stderr.Bytes()),
		ExitCode: code,
	}, nil
}

// EnsureExitCode converts a result whose exit code differs from expected
// into a CommandError carrying that result.
func EnsureExitCode(result CommandResult, expected int32, message string) error {
	if result.ExitCode == expected {
		return nil
	}

	return NewCommandError(message, result)
}

// decodeOutput turns captured bytes into a string using the encoding fixed
// at handshake. UTF-8 and ASCII pass through; anything else goes through the
// IANA index. Decoding never fails a command: unknown encodings fall back to
// the raw bytes with a logged warning.
func (s *Session) decodeOutput(raw []byte) string {
	cleaned := bom.Clean(raw)

	switch strings.ToLower(s.encoding) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return string(cleaned)
	}

	enc, err := ianaindex.IANA.Encoding(s.encoding)
	if err != nil || enc == nil {
		s.Log.WithField("encoding", s.encoding).Warn("unknown output encoding, returning raw bytes")
		return string(cleaned)
	}

	decoded, err := enc.NewDecoder().Bytes(cleaned)
	if err != nil {
		s.Log.WithError(err).WithField("encoding", s.encoding).Warn("decoding command output failed, returning raw bytes")
		return string(cleaned)
	}

	return string(decoded)
}
