package hgcmd

import (
	"regexp"
	"strconv"
	"time"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// Changeset identifies one committed revision.
type Changeset struct {
	Rev  int
	Node string
}

// CommitOptions configures a commit. Message is required.
type CommitOptions struct {
	Message string

	// User overrides the committer recorded in the changeset.
	User string

	// Date records the given time instead of now.
	Date time.Time

	// AddRemove marks new files added and missing files removed before
	// committing.
	AddRemove bool

	// Amend folds the working directory changes into the parent changeset.
	Amend bool

	// CloseBranch marks the branch head as closed.
	CloseBranch bool

	// Files restricts the commit to the given files.
	Files []string
}

// --debug makes hg confirm the commit with this line, which is the only
// place the new changeset's identity shows up.
var committedLine = regexp.MustCompile(`committed changeset (\d+):([0-9a-f]+)`)

// Commit records the working directory changes and returns the identity of
// the new changeset.
func (c *Client) Commit(opts CommitOptions) (Changeset, error) {
	if opts.Message == "" {
		return Changeset{}, &cmdserver.InvalidArgumentError{Reason: "commit requires a message"}
	}

	argv := []string{"commit", "--debug", "-m", opts.Message}
	argv = appendPair(argv, "-u", opts.User)
	if !opts.Date.IsZero() {
		argv = appendPair(argv, "-d", formatDate(opts.Date))
	}
	argv = appendIf(argv, opts.AddRemove, "-A")
	argv = appendIf(argv, opts.Amend, "--amend")
	argv = appendIf(argv, opts.CloseBranch, "--close-branch")
	argv = append(argv, opts.Files...)

	result, err := c.runExpectingSuccess(argv, "hg commit failed")
	if err != nil {
		return Changeset{}, err
	}

	// the confirmation can land on either stream depending on the hg version
	match := committedLine.FindStringSubmatch(result.Stdout)
	if match == nil {
		match = committedLine.FindStringSubmatch(result.Stderr)
	}
	if match == nil {
		return Changeset{}, cmdserver.NewCommandError("commit succeeded but no changeset was reported", result)
	}

	rev, err := strconv.Atoi(match[1])
	if err != nil {
		return Changeset{}, cmdserver.WrapError(err)
	}

	return Changeset{Rev: rev, Node: match[2]}, nil
}
