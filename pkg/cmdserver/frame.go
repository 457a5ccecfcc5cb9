package cmdserver

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	headerLen        = 5
	runRequestPrefix = "runcommand\n"
)

// Frame is one header plus optional payload unit read from the child. For
// the prompt channels (LineInput, ByteInput) the payload holds the four
// header length bytes; the child sends nothing further for those.
type Frame struct {
	Channel ChannelTag
	Payload []byte
}

// replyCap returns the maximum reply size encoded in a prompt frame.
func (f Frame) replyCap() uint32 {
	return binary.BigEndian.Uint32(f.Payload)
}

// readFrame blocks until one full frame is available on r. Lengths are
// big-endian u32 and stay unsigned throughout; io.ReadFull retries short
// pipe reads until the payload is complete. Every failure here is a
// ServerError because a misframed stream cannot be resynchronised.
func readFrame(r io.Reader) (Frame, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, NewServerError("malformed header", WrapError(err))
	}

	channel := ChannelTag(header[0])
	class, known := channelPolicy[channel]
	if !known {
		return Frame{}, NewServerError(fmt.Sprintf("invalid channel %q", header[0]), nil)
	}

	if class == classPrompt {
		payload := make([]byte, headerLen-1)
		copy(payload, header[1:])
		return Frame{Channel: channel, Payload: payload}, nil
	}

	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, NewServerError("truncated payload", WrapError(err))
	}

	return Frame{Channel: channel, Payload: payload}, nil
}

// encodeRunRequest serialises one runcommand submission: the literal
// "runcommand\n", a big-endian u32 block length, then the argv tokens joined
// by single NUL bytes with no trailing NUL. Everything goes into one buffer
// so the session can hand the whole request to a single write.
func encodeRunRequest(argv []string) []byte {
	block := strings.Join(argv, "\x00")

	buf := make([]byte, 0, len(runRequestPrefix)+4+len(block))
	buf = append(buf, runRequestPrefix...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(block)))
	buf = append(buf, block...)

	return buf
}

// encodeReply frames a prompt reply: a big-endian u32 length then the data
// itself. Reply frames carry no channel byte; an empty reply tells the child
// the prompt hit EOF.
func encodeReply(data []byte) []byte {
	buf := make([]byte, 0, 4+len(data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)

	return buf
}
