package hgcmd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/hgpipe/hgpipe/pkg/utils"
)

// BranchHead is one line of hg branches output.
type BranchHead struct {
	Name     string
	Rev      int
	Node     string
	Inactive bool
	Closed   bool
}

// Branch reports the name of the working directory's branch.
func (c *Client) Branch() (string, error) {
	result, err := c.runExpectingSuccess([]string{"branch"}, "hg branch failed")
	if err != nil {
		return "", err
	}

	return strings.TrimRight(result.Stdout, "\n"), nil
}

// Branch names may contain spaces, so the name is everything before the
// padding that right-aligns rev:node.
var branchLine = regexp.MustCompile(`^(\S.*?)\s+(\d+):([0-9a-f]+)(?:\s+\((inactive|closed)\))?$`)

// Branches reports the repository's named branches with their head
// changesets, including inactive and closed ones.
func (c *Client) Branches() ([]BranchHead, error) {
	result, err := c.runExpectingSuccess([]string{"branches", "-c"}, "hg branches failed")
	if err != nil {
		return nil, err
	}

	heads := lo.FilterMap(utils.SplitLines(result.Stdout), func(line string, _ int) (BranchHead, bool) {
		return parseBranchLine(line)
	})

	return heads, nil
}

func parseBranchLine(line string) (BranchHead, bool) {
	match := branchLine.FindStringSubmatch(line)
	if match == nil {
		return BranchHead{}, false
	}

	rev, err := strconv.Atoi(match[2])
	if err != nil {
		return BranchHead{}, false
	}

	return BranchHead{
		Name:     match[1],
		Rev:      rev,
		Node:     match[3],
		Inactive: match[4] == "inactive",
		Closed:   match[4] == "closed",
	}, true
}
