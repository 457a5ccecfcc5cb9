package hgcmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgpipe/hgpipe/pkg/cmdserver"
)

const sampleLogXML = `<?xml version="1.0"?>
<log>
<logentry revision="1" node="8a18bcb42c9c2bb2711db3c35ed3a4a5c0cbd0b1">
<tag>tip</tag>
<author email="alice@example.com">Alice</author>
<date>2024-04-02T09:15:00+02:00</date>
<msg xml:space="preserve">second
line</msg>
</logentry>
<logentry revision="0" node="2c3e073ecd3cafb9ba2a655edbfd6f5d9bd0669f">
<branch>stable</branch>
<parent revision="-1" node="0000000000000000000000000000000000000000" />
<author email="bob@example.com">Bob</author>
<date>2024-04-01T13:37:42+02:00</date>
<msg xml:space="preserve">first</msg>
</logentry>
</log>
`

// TestLogArgv is a function.
func TestLogArgv(t *testing.T) {
	type scenario struct {
		testName string
		opts     LogOptions
		expected []string
	}

	scenarios := []scenario{
		{
			"zero options",
			LogOptions{},
			[]string{"log", "--style", "xml"},
		},
		{
			"revision and limit",
			LogOptions{Revision: "tip", Limit: 5},
			[]string{"log", "--style", "xml", "-r", "tip", "-l", "5"},
		},
		{
			"filters and files",
			LogOptions{Branch: "stable", User: "alice", NoMerges: true, Files: []string{"foo"}},
			[]string{"log", "--style", "xml", "-b", "stable", "-u", "alice", "-M", "foo"},
		},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			client, mock := NewDummyClient(cmdserver.CommandResult{Stdout: "<log></log>"})

			_, err := client.Log(s.opts)
			require.NoError(t, err)
			assert.Equal(t, s.expected, mock.LastArgv())
		})
	}
}

// TestParseLogXML is a function.
func TestParseLogXML(t *testing.T) {
	entries, err := parseLogXML(sampleLogXML)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	tip := entries[0]
	assert.Equal(t, 1, tip.Rev)
	assert.Equal(t, "8a18bcb42c9c2bb2711db3c35ed3a4a5c0cbd0b1", tip.Node)
	assert.Equal(t, "default", tip.Branch)
	assert.Equal(t, []string{"tip"}, tip.Tags)
	assert.Equal(t, "Alice", tip.Author)
	assert.Equal(t, "alice@example.com", tip.Email)
	assert.Equal(t, "second\nline", tip.Message)
	assert.Empty(t, tip.Parents)

	first := entries[1]
	assert.Equal(t, 0, first.Rev)
	assert.Equal(t, "stable", first.Branch)
	assert.Equal(t, []string{"0000000000000000000000000000000000000000"}, first.Parents)

	wantDate := time.Date(2024, 4, 1, 13, 37, 42, 0, time.FixedZone("", 2*60*60))
	assert.True(t, first.Date.Equal(wantDate))
}

// TestParseLogXMLEmpty is a function.
func TestParseLogXMLEmpty(t *testing.T) {
	entries, err := parseLogXML("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestParseLogXMLMalformed is a function.
func TestParseLogXMLMalformed(t *testing.T) {
	_, err := parseLogXML("<log><logentry")
	assert.Error(t, err)
}

// TestTip is a function.
func TestTip(t *testing.T) {
	client, mock := NewDummyClient(cmdserver.CommandResult{Stdout: sampleLogXML})

	// the sample has two entries, so Tip must refuse it
	_, err := client.Tip()
	require.Error(t, err)
	assert.Equal(t, []string{"log", "--style", "xml", "-r", "tip"}, mock.LastArgv())
}

// TestTipSingleEntry is a function.
func TestTipSingleEntry(t *testing.T) {
	client, _ := NewDummyClient(cmdserver.CommandResult{Stdout: `<log>
<logentry revision="4" node="d6a0e5c7b2f1a9c3e8d4b0a6f2c1e9d7b3a5c8e0">
<tag>tip</tag>
<author email="alice@example.com">Alice</author>
<date>2024-04-02T09:15:00+02:00</date>
<msg xml:space="preserve">msg</msg>
</logentry>
</log>`})

	entry, err := client.Tip()
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Rev)
	assert.Equal(t, "msg", entry.Message)
}
