package process

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPipeFDs(t *testing.T) (int, int, error) {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, 0); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func unixCloseT(t *testing.T, fd int) {
	t.Helper()
	_ = unix.Close(fd)
}

func TestChannelSendRecv(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(InitReady(123)))

	got, err := b.Recv()
	require.NoError(t, err)
	require.Equal(t, InitReady(123), got)
}

func TestChannelRoundTripManyMessages(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	sent := []Message{
		Bootstrap(`{"rootfs":"/tmp"}`),
		NamespacesReady(),
		NamespacesReadyAck(),
		InitReady(1),
	}
	for _, m := range sent {
		require.NoError(t, a.Send(m))
	}
	for _, want := range sent {
		got, err := b.Recv()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestChannelRecvAfterCloseIsErrClosed(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Close())

	_, err = b.Recv()
	require.ErrorIs(t, err, ErrClosed)
}

func TestChannelSendFDRoundTrip(t *testing.T) {
	a, b, err := NewPair()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	r, w, err := newPipeFDs(t)
	require.NoError(t, err)
	defer unixCloseT(t, r)
	defer unixCloseT(t, w)

	require.NoError(t, a.SendFD(SeccompNotify(), r))

	m, fd, err := b.RecvWithFD()
	require.NoError(t, err)
	require.Equal(t, KindSeccompNotify, m.Kind)
	require.GreaterOrEqual(t, fd, 0)
	unixCloseT(t, fd)
}
