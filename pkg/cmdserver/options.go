package cmdserver

import (
	"time"

	"github.com/imdario/mergo"
)

// OpenOptions configures a session before launch. The zero value opens a
// repository-less session against the first hg on PATH.
type OpenOptions struct {
	// RepoPath is handed to the child as -R so every command runs against
	// that repository. Empty leaves it to the child's working directory.
	RepoPath string

	// Encoding forces the child's text encoding by exporting HGENCODING.
	// Empty keeps the parent environment untouched.
	Encoding string

	// ConfigOverrides are k=v pairs passed to the child as one comma-joined
	// --config flag.
	ConfigOverrides []string

	// HgBinary is the executable to launch. Defaults to "hg".
	HgBinary string

	// GraceTimeout bounds how long teardown waits for the child to exit
	// after its stdin closes before force-killing it.
	GraceTimeout time.Duration
}

func defaultOpenOptions() OpenOptions {
	return OpenOptions{
		HgBinary:     "hg",
		GraceTimeout: 2 * time.Second,
	}
}

// normalised copies the options with defaults filled into any zero fields,
// so a nil or zero OpenOptions is always usable.
func (o *OpenOptions) normalised() OpenOptions {
	opts := OpenOptions{}
	if o != nil {
		opts = *o
	}

	defaults := defaultOpenOptions()
	_ = mergo.Merge(&opts, defaults)

	return opts
}
