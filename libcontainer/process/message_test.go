package process

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindBootstrap:          "Bootstrap",
		KindIntermediateReady:  "IntermediateReady",
		KindInitReady:          "InitReady",
		KindWriteMapping:       "WriteMapping",
		KindMappingWritten:     "MappingWritten",
		KindNamespacesReady:    "NamespacesReady",
		KindNamespacesReadyAck: "NamespacesReadyAck",
		KindSeccompNotify:      "SeccompNotify",
		KindSeccompNotifyDone:  "SeccompNotifyDone",
		KindExecFailed:         "ExecFailed",
		KindOtherError:         "OtherError",
		KindTenantReady:        "TenantReady",
		Kind(999):              "Unknown",
	}
	for k, want := range cases {
		require.Equal(t, want, k.String())
	}
}

func TestMessageConstructors(t *testing.T) {
	require.Equal(t, Message{Kind: KindBootstrap, Text: "payload"}, Bootstrap("payload"))
	require.Equal(t, Message{Kind: KindIntermediateReady, Pid: 42}, IntermediateReady(42))
	require.Equal(t, Message{Kind: KindInitReady, Pid: 7}, InitReady(7))
	require.Equal(t, Message{Kind: KindWriteMapping}, WriteMapping())
	require.Equal(t, Message{Kind: KindMappingWritten}, MappingWritten())
	require.Equal(t, Message{Kind: KindNamespacesReady}, NamespacesReady())
	require.Equal(t, Message{Kind: KindNamespacesReadyAck}, NamespacesReadyAck())
	require.Equal(t, Message{Kind: KindSeccompNotify}, SeccompNotify())
	require.Equal(t, Message{Kind: KindSeccompNotifyDone}, SeccompNotifyDone())
	require.Equal(t, Message{Kind: KindExecFailed, Text: "boom"}, ExecFailed("boom"))
	require.Equal(t, Message{Kind: KindOtherError, Text: "oops"}, OtherError("oops"))
	require.Equal(t, Message{Kind: KindTenantReady, Pid: 9}, TenantReady(9))
}

func TestUnexpectedMessageError(t *testing.T) {
	err := &UnexpectedMessageError{
		Expected: KindInitReady,
		Received: Message{Kind: KindExecFailed, Text: "x"},
	}
	require.Equal(t, "received unexpected message: ExecFailed, expected: InitReady", err.Error())
}
