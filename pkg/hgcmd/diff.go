package hgcmd

// DiffOptions configures a diff. The zero value diffs the working directory
// against its parent.
type DiffOptions struct {
	// Revisions holds up to two revisions; one diffs the working directory
	// against it, two diff the revisions against each other.
	Revisions []string

	// Change shows the changes introduced by a single revision.
	Change string

	// Text treats all files as text.
	Text bool

	// Git uses the extended git diff format.
	Git bool

	// Reverse swaps the direction of the comparison.
	Reverse bool

	// ShowFunction shows which function each change is in.
	ShowFunction bool

	// Files restricts the diff to the given files.
	Files []string
}

// Diff returns the patch text for the requested comparison.
func (c *Client) Diff(opts DiffOptions) (string, error) {
	argv := []string{"diff"}
	argv = appendPairs(argv, "-r", opts.Revisions)
	argv = appendPair(argv, "-c", opts.Change)
	argv = appendIf(argv, opts.Text, "-a")
	argv = appendIf(argv, opts.Git, "-g")
	argv = appendIf(argv, opts.Reverse, "--reverse")
	argv = appendIf(argv, opts.ShowFunction, "-p")
	argv = append(argv, opts.Files...)

	result, err := c.runExpectingSuccess(argv, "hg diff failed")
	if err != nil {
		return "", err
	}

	return result.Stdout, nil
}
