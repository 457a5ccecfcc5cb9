package hgcmd

import (
	"strings"

	"github.com/samber/lo"

	"github.com/hgpipe/hgpipe/pkg/utils"
)

// StatusCode is the single letter hg status prints in front of each path.
type StatusCode byte

const (
	StatusModified  StatusCode = 'M'
	StatusAdded     StatusCode = 'A'
	StatusRemoved   StatusCode = 'R'
	StatusClean     StatusCode = 'C'
	StatusMissing   StatusCode = '!'
	StatusUntracked StatusCode = '?'
	StatusIgnored   StatusCode = 'I'
)

// FileStatus is one line of hg status output. Origin is only set for copies
// and renames when the Copies option asked for them.
type FileStatus struct {
	Code   StatusCode
	Path   string
	Origin string
}

// StatusOptions narrows or widens what hg status reports. The zero value
// reports the default set (modified, added, removed, deleted, unknown).
type StatusOptions struct {
	All       bool
	Modified  bool
	Added     bool
	Removed   bool
	Deleted   bool
	Clean     bool
	Unknown   bool
	Ignored   bool
	Copies    bool
	Revision  string
	Change    string
	Files     []string
}

// Status reports the state of files in the working directory.
func (c *Client) Status(opts StatusOptions) ([]FileStatus, error) {
	argv := []string{"status"}
	argv = appendIf(argv, opts.All, "-A")
	argv = appendIf(argv, opts.Modified, "-m")
	argv = appendIf(argv, opts.Added, "-a")
	argv = appendIf(argv, opts.Removed, "-r")
	argv = appendIf(argv, opts.Deleted, "-d")
	argv = appendIf(argv, opts.Clean, "-c")
	argv = appendIf(argv, opts.Unknown, "-u")
	argv = appendIf(argv, opts.Ignored, "-i")
	argv = appendIf(argv, opts.Copies, "-C")
	argv = appendPair(argv, "--rev", opts.Revision)
	argv = appendPair(argv, "--change", opts.Change)
	argv = append(argv, opts.Files...)

	result, err := c.runExpectingSuccess(argv, "hg status failed")
	if err != nil {
		return nil, err
	}

	return parseStatusLines(utils.SplitLines(result.Stdout)), nil
}

// parseStatusLines maps "X path" lines into FileStatus values. A line
// starting with two spaces is the copy origin of the previous entry (-C
// output) and folds into it.
func parseStatusLines(lines []string) []FileStatus {
	statuses := []FileStatus{}
	for _, line := range lines {
		if origin, ok := strings.CutPrefix(line, "  "); ok {
			if len(statuses) > 0 {
				statuses[len(statuses)-1].Origin = origin
			}
			continue
		}
		if len(line) < 3 || line[1] != ' ' {
			continue
		}

		statuses = append(statuses, FileStatus{
			Code: StatusCode(line[0]),
			Path: line[2:],
		})
	}

	return statuses
}

// PathsWithStatus filters a status report down to the paths carrying the
// given code.
func PathsWithStatus(statuses []FileStatus, code StatusCode) []string {
	return lo.FilterMap(statuses, func(status FileStatus, _ int) (string, bool) {
		return status.Path, status.Code == code
	})
}
