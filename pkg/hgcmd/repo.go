package hgcmd

// CloneOptions configures a clone. Source is required; an empty Destination
// lets hg derive the directory name from the source.
type CloneOptions struct {
	Source      string
	Destination string

	// Revision limits the clone to the given revision and its ancestors.
	Revision string

	// Branch limits the clone to the given branch.
	Branch string

	// NoUpdate leaves the working directory empty after the clone.
	NoUpdate bool

	// Pull uses pull protocol to copy metadata even for local clones.
	Pull bool
}

// Init creates a new repository at dest.
func (c *Client) Init(dest string) error {
	argv := []string{"init", dest}

	_, err := c.runExpectingSuccess(argv, "hg init failed")
	return err
}

// Clone copies a repository per the given options.
func (c *Client) Clone(opts CloneOptions) error {
	argv := []string{"clone"}
	argv = appendIf(argv, opts.NoUpdate, "--noupdate")
	argv = appendPair(argv, "--rev", opts.Revision)
	argv = appendPair(argv, "--branch", opts.Branch)
	argv = appendIf(argv, opts.Pull, "--pull")
	argv = append(argv, opts.Source)
	if opts.Destination != "" {
		argv = append(argv, opts.Destination)
	}

	_, err := c.runExpectingSuccess(argv, "hg clone failed")
	return err
}
