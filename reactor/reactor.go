package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// maxIOChunk bounds a single non-blocking read of a peer socket, matching
// the source's 64KiB peer buffer (ecmread.c's client_connection reads).
const maxIOChunk = 64 * 1024

// relayReadChunk bounds a single non-blocking read of the RELAY/meter
// socket, matching the source's dedicated 1KiB stack buffer for
// relay_data (ecmread.c:514) rather than reusing the 64KiB peer buffer.
// The relay buffer's sliding window (relayBufferSize, buffer.go) is only
// 8KiB; reading with the larger peer-sized buffer could append more
// bytes than the window has room for even after compacting, breaking
// its offset+size invariant. Capping the relay read to a small, fixed
// chunk keeps every append well within the window.
const relayReadChunk = 1024

// Run drives the reactor until Stop is called or an unrecoverable
// polling error occurs. It implements spec.md §4.6's six-step loop.
func (p *Program) Run() error {
	peerBuf := make([]byte, maxIOChunk)
	relayBuf := make([]byte, relayReadChunk)
	for !p.stopping.Load() {
		if err := p.runOnce(peerBuf, relayBuf); err != nil {
			return err
		}
	}
	return nil
}

// Stop sets the cooperative shutdown flag; the loop exits after its
// current iteration (spec.md §5). Safe to call from any goroutine.
func (p *Program) Stop() {
	p.stopping.Store(true)
}

func (p *Program) runOnce(peerBuf, relayBuf []byte) error {
	var readSet, writeSet unix.FdSet
	maxFD := 0

	p.sockets.forEach(func(s *Socket) {
		if s.wantsRead {
			readSet.Set(s.fd)
		}
		if s.wantsWrite {
			writeSet.Set(s.fd)
		}
		if s.fd > maxFD {
			maxFD = s.fd
		}
	})

	timeout := p.selectTimeout()

	n, err := unix.Select(maxFD+1, &readSet, &writeSet, nil, timeout)
	for err == unix.EINTR {
		n, err = unix.Select(maxFD+1, &readSet, &writeSet, nil, timeout)
	}
	if err != nil {
		return err
	}

	p.timers.Tick(time.Now())

	if n <= 0 {
		return nil
	}

	p.sockets.forEach(func(s *Socket) {
		r := readSet.IsSet(s.fd)
		w := writeSet.IsSet(s.fd)
		if r || w {
			p.dispatch(s, r, w, peerBuf, relayBuf)
		}
	})
	return nil
}

// selectTimeout computes the wait timeout from the timer wheel's
// earliest deadline, or nil (block indefinitely) if none is pending.
func (p *Program) selectTimeout() *unix.Timeval {
	deadline := p.timers.MinDeadline()
	if deadline.IsZero() {
		return nil
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return &tv
}

// dispatch invokes the callback named by s.cb, exactly one (r, w) pair
// per socket per cycle. The RELAY callback gets its own small read
// buffer, distinct from the larger one shared by every peer socket.
func (p *Program) dispatch(s *Socket, r, w bool, peerBuf, relayBuf []byte) {
	switch s.cb {
	case cbAcceptListener:
		if r {
			p.handleAccept(s)
		}
	case cbAwaitConnect:
		if w {
			p.awaitConnect(s)
		}
	case cbRelayInput:
		if r {
			p.handleRelayRead(s, relayBuf)
		}
	case cbPeerIO:
		if r {
			p.handlePeerRead(s, peerBuf)
		}
	}
}

// handleRelayRead reads from the meter-facing socket and fans the bytes
// out via the router (spec.md §4.5, §7).
func (p *Program) handleRelayRead(s *Socket, buf []byte) {
	n, err := rawRead(s.fd, buf)
	if err != nil {
		if wouldBlock(err) {
			return
		}
		p.log.Warn("relay socket error", "fd", s.fd, "err", err)
		p.reconnectSocket(s)
		return
	}
	if n == 0 {
		p.log.Warn("relay socket eof", "fd", s.fd)
		p.reconnectSocket(s)
		return
	}
	p.log.Debug("read from relay socket", "fd", s.fd, "n", n)
	p.forwardFromInput(s, buf[:n])
}

// handlePeerRead reads from a peer socket; BIDIRECTIONAL peers' bytes
// are forwarded back to the input unchanged (spec.md §4.5).
func (p *Program) handlePeerRead(s *Socket, buf []byte) {
	n, err := rawRead(s.fd, buf)
	if err != nil {
		if wouldBlock(err) {
			return
		}
		p.log.Warn("peer socket error", "fd", s.fd, "connection", s.conn.Name, "err", err)
		p.reconnectSocket(s)
		return
	}
	if n == 0 {
		p.log.Warn("peer socket eof", "fd", s.fd, "connection", s.conn.Name)
		p.reconnectSocket(s)
		return
	}
	if s.role == RoleBidirectional {
		p.forwardToInput(buf[:n])
	}
}
