package cmdserver

// This file exports dummy constructors for use by tests in other packages

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// NewDummyLog creates a new dummy Log for testing
func NewDummyLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return log.WithField("test", "test")
}

// NewDummyOpenOptions creates open options suitable for fast tests
func NewDummyOpenOptions() *OpenOptions {
	return &OpenOptions{
		HgBinary:     "hg",
		GraceTimeout: 100 * time.Millisecond,
	}
}
