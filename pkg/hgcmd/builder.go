package hgcmd

import "time"

// Argument vectors keep a stable shape: the subcommand first, then flags
// (boolean switches as one token, key/value flags as two), positionals last.

// appendIf appends flag when cond holds.
func appendIf(argv []string, cond bool, flag string) []string {
	if !cond {
		return argv
	}
	return append(argv, flag)
}

// appendPair appends flag and value as two tokens, skipping both when value
// is empty.
func appendPair(argv []string, flag string, value string) []string {
	if value == "" {
		return argv
	}
	return append(argv, flag, value)
}

// appendPairs appends flag once per value.
func appendPairs(argv []string, flag string, values []string) []string {
	for _, value := range values {
		argv = appendPair(argv, flag, value)
	}
	return argv
}

const dateLayout = "2006-01-02 15:04:05"

// formatDate renders a timestamp the way hg's -d flag expects it.
func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
