package hgcmd

// This file exports dummy constructors for use by tests in other packages

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// NewDummyLog creates a new dummy Log for testing
func NewDummyLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return log.WithField("test", "test")
}

// NewDummyClient creates a client backed by a ServerMock that answers every
// command with the given result.
func NewDummyClient(result cmdserver.CommandResult) (*Client, *ServerMock) {
	mock := &ServerMock{
		GetCommandOutputFunc: func([]string, cmdserver.InputProviders) (cmdserver.CommandResult, error) {
			return result, nil
		},
	}

	return NewClient(NewDummyLog(), mock), mock
}
