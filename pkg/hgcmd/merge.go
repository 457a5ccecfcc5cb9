package hgcmd

import (
	"regexp"
	"strconv"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// MergeOptions configures a merge. An empty Revision merges with the other
// head of the current branch.
type MergeOptions struct {
	Revision string

	// Tool picks the merge tool, e.g. "internal:merge".
	Tool string

	// Force merges even with outstanding uncommitted changes.
	Force bool
}

// UpdateOptions configures a working directory update. An empty Revision
// updates to the tip of the current branch.
type UpdateOptions struct {
	Revision string

	// Clean discards uncommitted changes.
	Clean bool

	// Check refuses to update when there are uncommitted changes.
	Check bool
}

// UpdateResult is the file summary hg prints after an update or merge.
type UpdateResult struct {
	Updated    int
	Merged     int
	Removed    int
	Unresolved int
}

// Merge merges the given revision into the working directory. Returns false
// without an error when the merge ran but left unresolved files (hg exits 1).
func (c *Client) Merge(opts MergeOptions) (bool, error) {
	argv := []string{"merge"}
	argv = appendPair(argv, "-r", opts.Revision)
	argv = appendIf(argv, opts.Force, "-f")
	argv = appendPair(argv, "-t", opts.Tool)

	_, ok, err := c.runTolerating(argv, "hg merge failed")
	return ok, err
}

var updateSummary = regexp.MustCompile(
	`(\d+) files updated, (\d+) files merged, (\d+) files removed, (\d+) files unresolved`)

// Update brings the working directory to the given revision and returns the
// file counts hg reports. An exit code of 1 (unresolved files crossing
// branches) keeps the counts rather than failing.
func (c *Client) Update(opts UpdateOptions) (UpdateResult, error) {
	argv := []string{"update"}
	argv = appendPair(argv, "-r", opts.Revision)
	argv = appendIf(argv, opts.Clean, "-C")
	argv = appendIf(argv, opts.Check, "--check")

	result, _, err := c.runTolerating(argv, "hg update failed")
	if err != nil {
		return UpdateResult{}, err
	}

	match := updateSummary.FindStringSubmatch(result.Stdout)
	if match == nil {
		return UpdateResult{}, cmdserver.NewCommandError("update reported no file summary", result)
	}

	counts := make([]int, 4)
	for i := range counts {
		counts[i], err = strconv.Atoi(match[i+1])
		if err != nil {
			return UpdateResult{}, cmdserver.WrapError(err)
		}
	}

	return UpdateResult{
		Updated:    counts[0],
		Merged:     counts[1],
		Removed:    counts[2],
		Unresolved: counts[3],
	}, nil
}
