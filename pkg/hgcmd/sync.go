package hgcmd

import (
	"strings"

	"github.com/hgpipe/hgpipe/pkg/utils"
)

// PullOptions configures a pull. An empty Source pulls from the repository's
// default path.
type PullOptions struct {
	Source   string
	Revision string
	Branch   string

	// Update also updates the working directory to the new tip.
	Update bool

	// Force runs even when the remote repository is unrelated.
	Force bool
}

// PushOptions configures a push. An empty Destination pushes to the
// repository's default path.
type PushOptions struct {
	Destination string
	Revision    string
	Branch      string

	// Force pushes even when it would create new remote heads.
	Force bool

	// NewBranch allows pushing a branch the remote has never seen.
	NewBranch bool
}

// Pull fetches changesets from a remote repository. Returns false without an
// error when the requested update left unresolved files behind (hg exits 1).
func (c *Client) Pull(opts PullOptions) (bool, error) {
	argv := []string{"pull"}
	argv = appendIf(argv, opts.Update, "-u")
	argv = appendIf(argv, opts.Force, "-f")
	argv = appendPair(argv, "-r", opts.Revision)
	argv = appendPair(argv, "-b", opts.Branch)
	if opts.Source != "" {
		argv = append(argv, opts.Source)
	}

	_, ok, err := c.runTolerating(argv, "hg pull failed")
	return ok, err
}

// Push sends local changesets to a remote repository. Returns false without
// an error when there was nothing to push (hg exits 1).
func (c *Client) Push(opts PushOptions) (bool, error) {
	argv := []string{"push"}
	argv = appendIf(argv, opts.Force, "-f")
	argv = appendPair(argv, "-r", opts.Revision)
	argv = appendPair(argv, "-b", opts.Branch)
	argv = appendIf(argv, opts.NewBranch, "--new-branch")
	if opts.Destination != "" {
		argv = append(argv, opts.Destination)
	}

	_, ok, err := c.runTolerating(argv, "hg push failed")
	return ok, err
}

// Incoming reports the changesets a pull from source would bring in. A nil
// slice without an error means the repositories are in sync (hg exits 1).
func (c *Client) Incoming(source string) ([]LogEntry, error) {
	argv := []string{"incoming", "--style", "xml", "-q"}
	if source != "" {
		argv = append(argv, source)
	}

	result, ok, err := c.runTolerating(argv, "hg incoming failed")
	if err != nil || !ok {
		return nil, err
	}

	return parseLogXML(result.Stdout)
}

// Outgoing reports the changesets a push to destination would send. A nil
// slice without an error means there is nothing to push (hg exits 1).
func (c *Client) Outgoing(destination string) ([]LogEntry, error) {
	argv := []string{"outgoing", "--style", "xml", "-q"}
	if destination != "" {
		argv = append(argv, destination)
	}

	result, ok, err := c.runTolerating(argv, "hg outgoing failed")
	if err != nil || !ok {
		return nil, err
	}

	return parseLogXML(result.Stdout)
}

// Paths reports the remote aliases configured for the repository.
func (c *Client) Paths() (map[string]string, error) {
	result, err := c.runExpectingSuccess([]string{"paths"}, "hg paths failed")
	if err != nil {
		return nil, err
	}

	paths := map[string]string{}
	for _, line := range utils.SplitLines(result.Stdout) {
		name, url, found := strings.Cut(line, " = ")
		if !found {
			continue
		}
		paths[name] = url
	}

	return paths, nil
}
