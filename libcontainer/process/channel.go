package process

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Recv when the peer has closed its end
// (4.A: "EOF is reported as a distinct error, so a dropped peer is
// always observable").
var ErrClosed = errors.New("channel: peer closed")

// Channel is one endpoint of a bidirectional stream socket pair (4.A).
// Each of the three named channels (main, intermediate, init) is
// really a pair of Channel values, one per direction, created together
// by NewPair and split across a clone/exec boundary.
type Channel struct {
	conn *net.UnixConn
	file *os.File
}

// NewPair creates a connected pair of stream sockets, the transport
// for one named channel. Each endpoint owns exactly one *os.File after
// the relevant clone; the non-owning side must Close() its duplicate
// immediately (§9 "ownership of fds").
func NewPair() (a, b *Channel, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: socketpair: %w", err)
	}
	a, err = fromFD(fds[0])
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err = fromFD(fds[1])
	if err != nil {
		a.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return a, b, nil
}

// AdoptChannel reconstructs a Channel from a descriptor this process
// inherited across a clone/exec boundary (always 3 or 4, per
// childExec's dup3 numbering) rather than one created locally by
// NewPair.
func AdoptChannel(fd uintptr) (*Channel, error) {
	return fromFD(int(fd))
}

func fromFD(fd int) (*Channel, error) {
	f := os.NewFile(uintptr(fd), "channel")
	conn, err := net.FileConn(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("channel: FileConn: %w", err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, errors.New("channel: not a unix conn")
	}
	// FileConn dup'd the fd; the original os.File can go, but we keep
	// it around only so Fd() is available for ExtraFiles plumbing
	// before the first clone/exec.
	return &Channel{conn: uc, file: f}, nil
}

// Fd returns the raw descriptor, for wiring into exec.Cmd.ExtraFiles
// before a clone/exec boundary. Do not use after Send/Recv have been
// called from this process's copy.
func (c *Channel) Fd() uintptr { return c.file.Fd() }

// Send writes one length-delimited, JSON-encoded Message. Never blocks
// indefinitely: bounded by the kernel socket buffer, per 4.A.
func (c *Channel) Send(m Message) error {
	return c.sendWithFDs(m, nil)
}

// SendFD writes m together with exactly one ancillary file descriptor
// (used only for SeccompNotify, 4.A: "the receiver must accept exactly
// one fd and refuse otherwise").
func (c *Channel) SendFD(m Message, fd int) error {
	return c.sendWithFDs(m, []int{fd})
}

func (c *Channel) sendWithFDs(m Message, fds []int) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("channel: marshal: %w", err)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	frame := append(hdr[:], payload...)

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("channel: syscallconn: %w", err)
	}
	var sendErr error
	ctrlErr := raw.Control(func(fdv uintptr) {
		sendErr = unix.Sendmsg(int(fdv), frame, oob, nil, 0)
	})
	if ctrlErr != nil {
		return fmt.Errorf("channel: control: %w", ctrlErr)
	}
	if sendErr != nil {
		return fmt.Errorf("channel: send: %w", sendErr)
	}
	return nil
}

// Recv blocks until one Message arrives or the peer closes.
func (c *Channel) Recv() (Message, error) {
	m, _, err := c.recv(false)
	return m, err
}

// RecvWithFD blocks until one Message arrives, returning any single
// ancillary fd attached to it. Missing or extra fds on a
// SeccompNotify-kind message are a ChannelError (4.A).
func (c *Channel) RecvWithFD() (Message, int, error) {
	return c.recv(true)
}

func (c *Channel) recv(wantFD bool) (Message, int, error) {
	var hdr [4]byte
	if _, err := readFull(c.conn, hdr[:]); err != nil {
		return Message{}, -1, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	payload := make([]byte, n)

	var (
		oob    []byte
		oobN   int
		fd     = -1
		rdErr  error
	)
	if wantFD {
		oob = make([]byte, unix.CmsgSpace(4))
		raw, err := c.conn.SyscallConn()
		if err != nil {
			return Message{}, -1, fmt.Errorf("channel: syscallconn: %w", err)
		}
		var n2, oobn2 int
		ctrlErr := raw.Control(func(fdv uintptr) {
			n2, oobn2, _, _, rdErr = unix.Recvmsg(int(fdv), payload, oob, 0)
		})
		if ctrlErr != nil {
			return Message{}, -1, fmt.Errorf("channel: control: %w", ctrlErr)
		}
		if rdErr != nil {
			return Message{}, -1, fmt.Errorf("channel: recvmsg: %w", rdErr)
		}
		if n2 == 0 {
			return Message{}, -1, ErrClosed
		}
		oobN = oobn2
	} else {
		if _, err := readFull(c.conn, payload); err != nil {
			return Message{}, -1, err
		}
	}

	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, -1, fmt.Errorf("channel: unmarshal: %w", err)
	}

	if wantFD {
		if oobN > 0 {
			cmsgs, err := unix.ParseSocketControlMessage(oob[:oobN])
			if err == nil && len(cmsgs) > 0 {
				fds, err := unix.ParseUnixRights(&cmsgs[0])
				if err == nil && len(fds) == 1 {
					fd = fds[0]
				}
			}
		}
		if m.Kind == KindSeccompNotify && fd < 0 {
			return m, -1, errors.New("channel: missing fd from seccomp notify request")
		}
	}
	return m, fd, nil
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return total, ErrClosed
			}
			return total, fmt.Errorf("channel: recv: %w", err)
		}
		if n == 0 {
			return total, ErrClosed
		}
	}
	return total, nil
}

// Close releases the endpoint; safe to call more than once.
func (c *Channel) Close() error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}
