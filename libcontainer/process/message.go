// Package process implements the Message Channel (4.A) and the three-
// process Birth Protocol (4.G): main, intermediate, and init,
// cooperating over the channels declared here. Grounded message-for-
// message on the youki reference implementation this spec was
// distilled from (original_source/crates/libcontainer/src/process/
// channel.rs, message.rs), translated into Go's process-based idiom:
// there is no async runtime here, each process blocks synchronously on
// recv.
package process

import "fmt"

// Kind tags a Message's variant.
type Kind int

const (
	KindBootstrap Kind = iota
	KindIntermediateReady
	KindInitReady
	KindWriteMapping
	KindMappingWritten
	KindNamespacesReady
	KindNamespacesReadyAck
	KindSeccompNotify
	KindSeccompNotifyDone
	KindExecFailed
	KindOtherError
	KindTenantReady
)

func (k Kind) String() string {
	switch k {
	case KindBootstrap:
		return "Bootstrap"
	case KindIntermediateReady:
		return "IntermediateReady"
	case KindInitReady:
		return "InitReady"
	case KindWriteMapping:
		return "WriteMapping"
	case KindMappingWritten:
		return "MappingWritten"
	case KindNamespacesReady:
		return "NamespacesReady"
	case KindNamespacesReadyAck:
		return "NamespacesReadyAck"
	case KindSeccompNotify:
		return "SeccompNotify"
	case KindSeccompNotifyDone:
		return "SeccompNotifyDone"
	case KindExecFailed:
		return "ExecFailed"
	case KindOtherError:
		return "OtherError"
	case KindTenantReady:
		return "TenantReady"
	default:
		return "Unknown"
	}
}

// Message is one wire-format unit carried over a Channel. Pid/Text
// carry scalar payloads depending on Kind; SeccompNotify instead
// carries a file descriptor out-of-band via SCM_RIGHTS (see
// Channel.SendFD / Channel.RecvWithFD).
type Message struct {
	Kind Kind   `json:"kind"`
	Pid  int32  `json:"pid,omitempty"`
	Text string `json:"text,omitempty"`
}

// Bootstrap carries the JSON-encoded configs.Config (plus the small
// amount of per-run context args.go doesn't already fold into an env
// var) as the very first message on both the main<->intermediate and
// main<->init channels — there is no shared memory across a clone/exec
// boundary, so the config itself must cross the wire exactly once per
// channel, the way runc's init pipe carries its bootstrap data.
func Bootstrap(payload string) Message      { return Message{Kind: KindBootstrap, Text: payload} }
func IntermediateReady(pid int32) Message { return Message{Kind: KindIntermediateReady, Pid: pid} }
func InitReady(pid int32) Message         { return Message{Kind: KindInitReady, Pid: pid} }
func WriteMapping() Message               { return Message{Kind: KindWriteMapping} }
func MappingWritten() Message             { return Message{Kind: KindMappingWritten} }
func NamespacesReady() Message            { return Message{Kind: KindNamespacesReady} }
func NamespacesReadyAck() Message         { return Message{Kind: KindNamespacesReadyAck} }
func SeccompNotify() Message              { return Message{Kind: KindSeccompNotify} }
func SeccompNotifyDone() Message          { return Message{Kind: KindSeccompNotifyDone} }
func ExecFailed(text string) Message      { return Message{Kind: KindExecFailed, Text: text} }
func OtherError(text string) Message      { return Message{Kind: KindOtherError, Text: text} }
func TenantReady(pid int32) Message       { return Message{Kind: KindTenantReady, Pid: pid} }

// UnexpectedMessageError is returned whenever a receiver observes a
// Kind other than the one the current protocol step expects (§8
// invariant: "no receiver observes a variant other than the one
// expected by the current protocol step").
type UnexpectedMessageError struct {
	Expected Kind
	Received Message
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("received unexpected message: %s, expected: %s", e.Received.Kind, e.Expected)
}
