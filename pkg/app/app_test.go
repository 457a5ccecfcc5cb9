package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
	"github.com/hgpipe/hgpipe/pkg/config"
)

// TestMergeServerConfig is a function.
func TestMergeServerConfig(t *testing.T) {
	type scenario struct {
		testName string
		opts     *cmdserver.OpenOptions
		server   config.ServerConfig
		expected cmdserver.OpenOptions
	}

	scenarios := []scenario{
		{
			"nil options take everything from the config",
			nil,
			config.ServerConfig{HgBinary: "hg", Encoding: "latin-1", GraceTimeoutSeconds: 3},
			cmdserver.OpenOptions{HgBinary: "hg", Encoding: "latin-1", GraceTimeout: 3 * time.Second},
		},
		{
			"flags win over the config",
			&cmdserver.OpenOptions{HgBinary: "/opt/hg/bin/hg", Encoding: "UTF-8"},
			config.ServerConfig{HgBinary: "hg", Encoding: "latin-1"},
			cmdserver.OpenOptions{HgBinary: "/opt/hg/bin/hg", Encoding: "UTF-8"},
		},
		{
			"config overrides pass through",
			&cmdserver.OpenOptions{RepoPath: "/tmp/R"},
			config.ServerConfig{HgBinary: "hg", ConfigOverrides: []string{"ui.username=test"}},
			cmdserver.OpenOptions{RepoPath: "/tmp/R", HgBinary: "hg", ConfigOverrides: []string{"ui.username=test"}},
		},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			assert.Equal(t, s.expected, *mergeServerConfig(s.opts, s.server))
		})
	}
}

// TestKnownError is a function.
func TestKnownError(t *testing.T) {
	app := &App{}

	type scenario struct {
		testName      string
		err           error
		expectedKnown bool
	}

	scenarios := []scenario{
		{
			"missing binary",
			errors.New(`launching "hg": exec: "hg": executable file not found in $PATH`),
			true,
		},
		{
			"no repository",
			errors.New("abort: no repository found in '/tmp' (.hg not found)"),
			true,
		},
		{
			"missing capability",
			cmdserver.NewServerError("unsupported capability: runcommand", nil),
			true,
		},
		{
			"anything else",
			errors.New("some novel failure"),
			false,
		},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			message, known := app.KnownError(s.err)
			assert.Equal(t, s.expectedKnown, known)
			if known {
				assert.NotEmpty(t, message)
			}
		})
	}
}

// TestExpectEqual is a function.
func TestExpectEqual(t *testing.T) {
	assert.NoError(t, expectEqual("thing", "same", "same"))

	err := expectEqual("thing", "one\ntwo\n", "one\nthree\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "thing mismatch")
	assert.Contains(t, err.Error(), "-two")
	assert.Contains(t, err.Error(), "+three")
}
