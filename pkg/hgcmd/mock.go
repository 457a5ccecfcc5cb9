package hgcmd

import (
	"errors"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// ServerMock implements CommandServer for testing purposes. Each method can
// be customized by setting the corresponding function field; unset methods
// return sensible defaults or ErrMockNotImplemented.
type ServerMock struct {
	RunCommandFunc       func(argv []string, sinks cmdserver.OutputSinks, providers cmdserver.InputProviders) (int32, error)
	GetCommandOutputFunc func(argv []string, providers cmdserver.InputProviders) (cmdserver.CommandResult, error)
	EncodingFunc         func() string
	CapabilitiesFunc     func() []string

	// Track method calls for assertions
	Calls []MockCall
}

// MockCall records a method invocation for verification in tests.
type MockCall struct {
	Method string
	Argv   []string
}

// ErrMockNotImplemented is returned when a mock function is not set.
var ErrMockNotImplemented = errors.New("mock function not implemented")

func (m *ServerMock) recordCall(method string, argv []string) {
	m.Calls = append(m.Calls, MockCall{Method: method, Argv: argv})
}

func (m *ServerMock) RunCommand(argv []string, sinks cmdserver.OutputSinks, providers cmdserver.InputProviders) (int32, error) {
	m.recordCall("RunCommand", argv)
	if m.RunCommandFunc != nil {
		return m.RunCommandFunc(argv, sinks, providers)
	}
	return 0, ErrMockNotImplemented
}

func (m *ServerMock) GetCommandOutput(argv []string, providers cmdserver.InputProviders) (cmdserver.CommandResult, error) {
	m.recordCall("GetCommandOutput", argv)
	if m.GetCommandOutputFunc != nil {
		return m.GetCommandOutputFunc(argv, providers)
	}
	return cmdserver.CommandResult{}, ErrMockNotImplemented
}

func (m *ServerMock) Encoding() string {
	m.recordCall("Encoding", nil)
	if m.EncodingFunc != nil {
		return m.EncodingFunc()
	}
	return "UTF-8"
}

func (m *ServerMock) Capabilities() []string {
	m.recordCall("Capabilities", nil)
	if m.CapabilitiesFunc != nil {
		return m.CapabilitiesFunc()
	}
	return []string{"getencoding", "runcommand"}
}

// LastArgv returns the argv of the most recent recorded call.
func (m *ServerMock) LastArgv() []string {
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1].Argv
}

// CallCount returns the number of times a method was called.
func (m *ServerMock) CallCount(method string) int {
	count := 0
	for _, call := range m.Calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *ServerMock) Reset() {
	m.Calls = nil
}

// Verify that ServerMock implements CommandServer at compile time.
var _ CommandServer = (*ServerMock)(nil)
