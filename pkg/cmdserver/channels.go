package cmdserver

import "fmt"

// ChannelTag identifies one of the logical streams multiplexed over the
// child's stdout. The byte values are fixed by the wire protocol.
type ChannelTag byte

const (
	// ChannelOutput carries the command's stdout bytes.
	ChannelOutput ChannelTag = 'o'
	// ChannelError carries the command's stderr bytes.
	ChannelError ChannelTag = 'e'
	// ChannelResult terminates a command with its 32-bit exit code.
	ChannelResult ChannelTag = 'r'
	// ChannelDebug carries extra diagnostics when the server runs with
	// debugging enabled.
	ChannelDebug ChannelTag = 'd'
	// ChannelLineInput asks the client for one line of input.
	ChannelLineInput ChannelTag = 'L'
	// ChannelByteInput asks the client for raw bytes.
	ChannelByteInput ChannelTag = 'I'
)

func (t ChannelTag) String() string {
	switch t {
	case ChannelOutput:
		return "output"
	case ChannelError:
		return "error"
	case ChannelResult:
		return "result"
	case ChannelDebug:
		return "debug"
	case ChannelLineInput:
		return "line-input"
	case ChannelByteInput:
		return "byte-input"
	}
	return fmt.Sprintf("unknown(%q)", byte(t))
}

// channelClass groups channels by how the driver treats their frames.
type channelClass int

const (
	// classData frames carry a payload destined for a caller-owned sink.
	classData channelClass = iota + 1
	// classPrompt frames carry no payload; the length field is the maximum
	// reply size the child will accept.
	classPrompt
	// classResult frames end the command, carrying its exit code.
	classResult
)

// channelPolicy is the single source of truth for channel semantics: the
// codec rejects any byte missing from it and the command loop dispatches on
// the class. Adding a channel means adding a row here.
var channelPolicy = map[ChannelTag]channelClass{
	ChannelOutput:    classData,
	ChannelError:     classData,
	ChannelDebug:     classData,
	ChannelResult:    classResult,
	ChannelLineInput: classPrompt,
	ChannelByteInput: classPrompt,
}
