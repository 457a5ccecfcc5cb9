package hgcmd

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

// LogEntry is one changeset as reported by hg log.
type LogEntry struct {
	Rev     int
	Node    string
	Branch  string
	Tags    []string
	Author  string
	Email   string
	Date    time.Time
	Message string
	Parents []string
}

// LogOptions narrows what hg log reports. The zero value reports the whole
// history of the current branch's ancestry.
type LogOptions struct {
	// Revision is a revset selecting the changesets to report.
	Revision string

	// Limit caps the number of entries.
	Limit int

	// Branch restricts the report to one branch.
	Branch string

	// Keyword does a case-insensitive search in commit messages, users and
	// file names.
	Keyword string

	// User restricts the report to changesets committed by the given user.
	User string

	// Follow tracks file history across copies and renames.
	Follow bool

	// NoMerges hides merge changesets.
	NoMerges bool

	// Files restricts the report to changesets touching the given files.
	Files []string
}

// Log reports changesets matching the given options, newest first.
func (c *Client) Log(opts LogOptions) ([]LogEntry, error) {
	argv := []string{"log", "--style", "xml"}
	argv = appendPair(argv, "-r", opts.Revision)
	if opts.Limit > 0 {
		argv = appendPair(argv, "-l", fmt.Sprint(opts.Limit))
	}
	argv = appendPair(argv, "-b", opts.Branch)
	argv = appendPair(argv, "-k", opts.Keyword)
	argv = appendPair(argv, "-u", opts.User)
	argv = appendIf(argv, opts.Follow, "-f")
	argv = appendIf(argv, opts.NoMerges, "-M")
	argv = append(argv, opts.Files...)

	result, err := c.runExpectingSuccess(argv, "hg log failed")
	if err != nil {
		return nil, err
	}

	return parseLogXML(result.Stdout)
}

// Tip reports the repository's tip changeset.
func (c *Client) Tip() (LogEntry, error) {
	entries, err := c.Log(LogOptions{Revision: "tip"})
	if err != nil {
		return LogEntry{}, err
	}
	if len(entries) != 1 {
		return LogEntry{}, cmdserver.WrapError(fmt.Errorf("expected one tip entry, got %d", len(entries)))
	}

	return entries[0], nil
}

// The shapes hg's xml style emits. Branch is omitted for changesets on the
// default branch; msg preserves whitespace.
type xmlLog struct {
	Entries []xmlLogEntry `xml:"logentry"`
}

type xmlLogEntry struct {
	Revision int         `xml:"revision,attr"`
	Node     string      `xml:"node,attr"`
	Branch   string      `xml:"branch"`
	Tags     []string    `xml:"tag"`
	Parents  []xmlParent `xml:"parent"`
	Author   xmlAuthor   `xml:"author"`
	Date     string      `xml:"date"`
	Message  string      `xml:"msg"`
}

type xmlAuthor struct {
	Email string `xml:"email,attr"`
	Name  string `xml:",chardata"`
}

type xmlParent struct {
	Revision int    `xml:"revision,attr"`
	Node     string `xml:"node,attr"`
}

// parseLogXML decodes the output of a --style xml log-like command. An empty
// capture (incoming/outgoing with nothing to report) yields no entries.
func parseLogXML(raw string) ([]LogEntry, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	var parsed xmlLog
	if err := xml.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, cmdserver.WrapError(err)
	}

	entries := make([]LogEntry, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		date, err := time.Parse(time.RFC3339, entry.Date)
		if err != nil {
			return nil, cmdserver.WrapError(err)
		}

		branch := entry.Branch
		if branch == "" {
			branch = "default"
		}

		entries = append(entries, LogEntry{
			Rev:     entry.Revision,
			Node:    entry.Node,
			Branch:  branch,
			Tags:    entry.Tags,
			Author:  entry.Author.Name,
			Email:   entry.Author.Email,
			Date:    date,
			Message: entry.Message,
			Parents: lo.Map(entry.Parents, func(parent xmlParent, _ int) string {
				return parent.Node
			}),
		})
	}

	return entries, nil
}
