package cmdserver

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBytes(channel byte, payload []byte) []byte {
	buf := make([]byte, headerLen, headerLen+len(payload))
	buf[0] = channel
	binary.BigEndian.PutUint32(buf[1:], uint32(len(payload)))
	return append(buf, payload...)
}

func promptBytes(channel byte, replyCap uint32) []byte {
	buf := make([]byte, headerLen)
	buf[0] = channel
	binary.BigEndian.PutUint32(buf[1:], replyCap)
	return buf
}

// TestReadFrameDataChannels is a function.
func TestReadFrameDataChannels(t *testing.T) {
	type scenario struct {
		testName string
		channel  ChannelTag
		payload  []byte
	}

	scenarios := []scenario{
		{"output with payload", ChannelOutput, []byte("A foo\n")},
		{"error with payload", ChannelError, []byte("abort: no repository\n")},
		{"debug with payload", ChannelDebug, []byte("committing foo")},
		{"result payload", ChannelResult, []byte{0, 0, 0, 7}},
		{"empty payload", ChannelOutput, []byte{}},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			frame, err := readFrame(bytes.NewReader(frameBytes(byte(s.channel), s.payload)))
			require.NoError(t, err)
			assert.Equal(t, s.channel, frame.Channel)
			assert.Equal(t, s.payload, frame.Payload)
		})
	}
}

// TestReadFramePromptChannels is a function.
func TestReadFramePromptChannels(t *testing.T) {
	type scenario struct {
		testName string
		channel  ChannelTag
		replyCap uint32
	}

	scenarios := []scenario{
		{"line input", ChannelLineInput, 8},
		{"byte input", ChannelByteInput, 4096},
		{"full u32 cap stays unsigned", ChannelLineInput, 0xFFFFFFFF},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			trailing := []byte("XYZ")
			reader := bytes.NewReader(append(promptBytes(byte(s.channel), s.replyCap), trailing...))

			frame, err := readFrame(reader)
			require.NoError(t, err)
			assert.Equal(t, s.channel, frame.Channel)
			assert.Len(t, frame.Payload, 4)
			assert.Equal(t, s.replyCap, frame.replyCap())

			// nothing after the header may be consumed
			rest, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, trailing, rest)
		})
	}
}

// TestReadFrameInvalidChannel is a function.
func TestReadFrameInvalidChannel(t *testing.T) {
	_, err := readFrame(bytes.NewReader(frameBytes('?', []byte("junk"))))
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, err.Error(), "invalid channel")
}

// TestReadFrameShortHeader is a function.
func TestReadFrameShortHeader(t *testing.T) {
	type scenario struct {
		testName string
		input    []byte
		cause    error
	}

	scenarios := []scenario{
		{"immediate EOF", []byte{}, io.EOF},
		{"header cut short", []byte{'o', 0, 0}, io.ErrUnexpectedEOF},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			_, err := readFrame(bytes.NewReader(s.input))
			require.Error(t, err)

			var serverErr *ServerError
			require.ErrorAs(t, err, &serverErr)
			assert.Contains(t, err.Error(), "malformed header")
			assert.ErrorIs(t, err, s.cause)
		})
	}
}

// TestReadFrameTruncatedPayload is a function.
func TestReadFrameTruncatedPayload(t *testing.T) {
	input := make([]byte, headerLen, headerLen+4)
	input[0] = 'o'
	binary.BigEndian.PutUint32(input[1:], 10)
	input = append(input, []byte("four")...)

	_, err := readFrame(bytes.NewReader(input))
	require.Error(t, err)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, err.Error(), "truncated payload")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// TestEncodeRunRequest is a function.
func TestEncodeRunRequest(t *testing.T) {
	type scenario struct {
		testName string
		argv     []string
	}

	scenarios := []scenario{
		{"single token", []string{"root"}},
		{"subcommand with positional", []string{"init", "/tmp/R"}},
		{"args keep embedded spaces", []string{"commit", "-m", "first commit"}},
		{"multibyte utf-8 survives", []string{"commit", "-m", "héllo wörld"}},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			encoded := encodeRunRequest(s.argv)

			require.True(t, bytes.HasPrefix(encoded, []byte(runRequestPrefix)))

			lengthField := encoded[len(runRequestPrefix) : len(runRequestPrefix)+4]
			block := encoded[len(runRequestPrefix)+4:]

			wantLen := len(s.argv) - 1
			for _, arg := range s.argv {
				wantLen += len(arg)
			}

			assert.EqualValues(t, wantLen, binary.BigEndian.Uint32(lengthField))
			assert.Len(t, block, wantLen)
			assert.False(t, bytes.HasSuffix(block, []byte{0}), "no trailing NUL after the last argument")
			assert.Equal(t, s.argv, strings.Split(string(block), "\x00"))
		})
	}
}

// TestEncodeReply is a function.
func TestEncodeReply(t *testing.T) {
	type scenario struct {
		testName string
		data     []byte
		expected []byte
	}

	scenarios := []scenario{
		{"empty reply signals EOF", nil, []byte{0, 0, 0, 0}},
		{"line reply", []byte("hi\n"), []byte{0, 0, 0, 3, 'h', 'i', '\n'}},
	}

	for _, s := range scenarios {
		t.Run(s.testName, func(t *testing.T) {
			assert.Equal(t, s.expected, encodeReply(s.data))
		})
	}
}
