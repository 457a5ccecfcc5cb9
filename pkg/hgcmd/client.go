package hgcmd

import (
	"github.com/sirupsen/logrus"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// CommandServer is the slice of a cmdserver session the adapters consume.
// *cmdserver.Session satisfies it; tests substitute a ServerMock.
type CommandServer interface {
	RunCommand(argv []string, sinks cmdserver.OutputSinks, providers cmdserver.InputProviders) (int32, error)
	GetCommandOutput(argv []string, providers cmdserver.InputProviders) (cmdserver.CommandResult, error)
	Encoding() string
	Capabilities() []string
}

var _ CommandServer = (*cmdserver.Session)(nil)

// Client builds argument vectors for individual hg subcommands, runs them
// through a command server and interprets the captured output. It holds no
// state of its own beyond the server handle, so one client per session is
// enough.
type Client struct {
	Logger *logrus.Entry
	Server CommandServer
}

// NewClient returns a client speaking to the given command server.
func NewClient(log *logrus.Entry, server CommandServer) *Client {
	return &Client{
		Logger: log,
		Server: server,
	}
}

// runExpectingSuccess runs argv and converts any non-zero exit code into a
// CommandError carrying the captured result.
func (c *Client) runExpectingSuccess(argv []string, message string) (cmdserver.CommandResult, error) {
	c.Logger.WithField("argv", argv).Debug("running subcommand")

	result, err := c.Server.GetCommandOutput(argv, nil)
	if err != nil {
		return cmdserver.CommandResult{}, err
	}

	return result, cmdserver.EnsureExitCode(result, 0, message)
}

// runTolerating runs argv treating exit code 0 as full success and 1 as "ran,
// but": pull hit conflicts, push had nothing to do, add skipped files. Any
// other code becomes a CommandError.
func (c *Client) runTolerating(argv []string, message string) (cmdserver.CommandResult, bool, error) {
	c.Logger.WithField("argv", argv).Debug("running subcommand")

	result, err := c.Server.GetCommandOutput(argv, nil)
	if err != nil {
		return cmdserver.CommandResult{}, false, err
	}

	switch result.ExitCode {
	case 0:
		return result, true, nil
	case 1:
		return result, false, nil
	default:
		return result, false, cmdserver.NewCommandError(message, result)
	}
}
