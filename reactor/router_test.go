package reactor

import (
	"testing"

	"golang.org/x/sys/unix"
)

// socketpair returns two connected, non-blocking fds standing in for a
// live TCP connection without touching the network.
func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("SetNonblock: %v", err)
		}
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func recvAll(t *testing.T, fd int, max int) []byte {
	t.Helper()
	buf := make([]byte, max)
	n, err := rawRead(fd, buf)
	if err != nil && !wouldBlock(err) {
		t.Fatalf("read: %v", err)
	}
	if n < 0 {
		n = 0
	}
	return buf[:n]
}

func newTestProgram(inputConnector bool) (*Program, *Connection) {
	input := &Connection{Name: "meter", Connector: inputConnector}
	return NewProgram(input, nil, nil), input
}

func TestForwardFromInputFansOutToBidirectionalPeers(t *testing.T) {
	p, input := newTestProgram(true)

	inFD, _ := socketpair(t)
	relay := &Socket{fd: inFD, conn: input, role: RoleRelay, cb: cbRelayInput, readBuf: &slidingBuffer{}}
	input.socket = relay
	p.sockets.insert(relay)

	ctrlConn := &Connection{Name: "ctrl", Controller: true}
	ctrlLocal, ctrlRemote := socketpair(t)
	ctrlSocket := &Socket{fd: ctrlLocal, conn: ctrlConn, role: RoleBidirectional, cb: cbPeerIO}
	p.sockets.insert(ctrlSocket)

	listenerConn := &Connection{Name: "listener"}
	listenLocal, listenRemote := socketpair(t)
	listenerSocket := &Socket{fd: listenLocal, conn: listenerConn, role: RoleUnidirectional, cb: cbPeerIO}
	p.sockets.insert(listenerSocket)

	raw := []byte("not a frame, just raw bytes")
	p.forwardFromInput(relay, raw)

	got := recvAll(t, ctrlRemote, 128)
	if string(got) != string(raw) {
		t.Fatalf("bidirectional peer got %q, want %q", got, raw)
	}

	// Raw non-frame bytes must never reach a unidirectional peer.
	got = recvAll(t, listenRemote, 128)
	if len(got) != 0 {
		t.Fatalf("unidirectional peer unexpectedly received %q", got)
	}
}

func TestForwardFromInputDeliversValidFramesToUnidirectionalPeers(t *testing.T) {
	p, input := newTestProgram(true)

	inFD, _ := socketpair(t)
	relay := &Socket{fd: inFD, conn: input, role: RoleRelay, cb: cbRelayInput, readBuf: &slidingBuffer{}}
	input.socket = relay
	p.sockets.insert(relay)

	listenerConn := &Connection{Name: "listener"}
	listenLocal, listenRemote := socketpair(t)
	listenerSocket := &Socket{fd: listenLocal, conn: listenerConn, role: RoleUnidirectional, cb: cbPeerIO}
	p.sockets.insert(listenerSocket)

	frame := validFrame()
	p.forwardFromInput(relay, frame)

	got := recvAll(t, listenRemote, frameLen+16)
	if len(got) != frameLen {
		t.Fatalf("got %d bytes, want %d", len(got), frameLen)
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Fatalf("frame byte %d: got %02x, want %02x", i, got[i], frame[i])
		}
	}
}

func TestForwardToInputUsesConnectorSocket(t *testing.T) {
	p, input := newTestProgram(true)

	local, remote := socketpair(t)
	relay := &Socket{fd: local, conn: input, role: RoleRelay, cb: cbRelayInput}
	input.socket = relay
	p.sockets.insert(relay)

	payload := []byte("controller command")
	p.forwardToInput(payload)

	got := recvAll(t, remote, 128)
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestForwardToInputFallsBackToFirstRelaySocketWhenInputIsAcceptor(t *testing.T) {
	p, input := newTestProgram(false) // INPUT is a listener, not a connector

	local, remote := socketpair(t)
	child := &Socket{fd: local, conn: input, role: RoleRelay, cb: cbRelayInput}
	p.sockets.insert(child)

	payload := []byte("to accepted meter child")
	p.forwardToInput(payload)

	got := recvAll(t, remote, 128)
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestForwardToInputDropsWhenNoInputSocket(t *testing.T) {
	p, _ := newTestProgram(true)
	// No sockets registered at all; must not panic.
	p.forwardToInput([]byte("dropped"))
}
