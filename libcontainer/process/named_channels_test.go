package process

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainChannelIntermediateReadyHandshake(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	sender := NewMainSender(a)
	receiver := NewMainReceiver(b)

	require.NoError(t, sender.IntermediateReady(99))
	pid, err := receiver.WaitForIntermediateReady()
	require.NoError(t, err)
	require.Equal(t, int32(99), pid)
}

func TestMainChannelIntermediateReadyExecFailed(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	require.NoError(t, NewMainSender(a).ExecFailed("no such file"))
	_, err = NewMainReceiver(b).WaitForIntermediateReady()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such file")
}

func TestMainChannelUnexpectedKind(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(NamespacesReady()))
	_, err = NewMainReceiver(b).WaitForInitReady()
	require.Error(t, err)
	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, err, &unexpected)
	require.Equal(t, KindInitReady, unexpected.Expected)
}

func TestIntermediateChannelBootstrapHandshake(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	sender := NewIntermediateSender(a)
	receiver := NewIntermediateReceiver(b)

	require.NoError(t, sender.Bootstrap(`{"container_id":"x"}`))
	payload, err := receiver.WaitForBootstrap()
	require.NoError(t, err)
	require.Equal(t, `{"container_id":"x"}`, payload)

	require.NoError(t, sender.MappingWritten())
	require.NoError(t, receiver.WaitForMappingAck())

	require.NoError(t, sender.NamespacesReadyAck())
	require.NoError(t, receiver.WaitForNamespacesReadyAck())
}

func TestInitChannelSeccompNotifyDone(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	require.NoError(t, NewInitSender(a).SeccompNotifyDone())
	require.NoError(t, NewInitReceiver(b).WaitForSeccompRequestDone())
}

func TestMainChannelSeccompNotifyCarriesFD(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	r, w, err := newPipeFDs(t)
	require.NoError(t, err)
	defer unixCloseT(t, r)
	defer unixCloseT(t, w)

	require.NoError(t, NewMainSender(a).SeccompNotifyRequest(r))
	fd, err := NewMainReceiver(b).WaitForSeccompRequest()
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, 0)
	unixCloseT(t, fd)
}
