package reactor

import "time"

// connectTimeout is the fixed async-connect timeout from spec.md §4.4.
const connectTimeout = 5 * time.Second

// setupConnection realizes one Connection: for a connector it begins an
// asynchronous dial, for an acceptor it creates a listening socket.
// Startup failures are logged at WARN and, for dialers, followed by a
// reconnect timer — setup never returns an error to its caller, matching
// spec.md §7 ("startup continues").
func (p *Program) setupConnection(conn *Connection) {
	if conn.Connector {
		p.setupDial(conn)
		return
	}
	p.setupListen(conn)
}

func (p *Program) setupDial(conn *Connection) {
	fd, connected, err := dialNonblocking(conn.Host, conn.Port)
	if err != nil {
		p.log.Warn("dial failed, scheduling retry", "connection", conn.Name, "err", err)
		p.scheduleReconnect(conn)
		return
	}

	s := &Socket{fd: fd, conn: conn}
	p.assignRole(s, conn)
	allocateRelayBuffer(s)
	conn.socket = s

	if connected {
		p.onConnected(s)
	} else {
		s.wantsWrite = true
		s.cb = cbAwaitConnect
		s.timer = p.timers.Start(connectTimeout, func(data interface{}) {
			p.cancelConnection(data.(*Socket))
		}, s)
	}
	p.sockets.insert(s)
}

func (p *Program) setupListen(conn *Connection) {
	fd, err := listenNonblocking(conn.Host, conn.Port)
	if err != nil {
		// Not a connector: spec.md §7 only arms a reconnect timer for
		// dialers on startup failure. This peer is simply skipped.
		p.log.Warn("listen failed, peer skipped", "connection", conn.Name, "err", err)
		return
	}

	s := &Socket{fd: fd, conn: conn, wantsRead: true, cb: cbAcceptListener}
	// The accept socket inherits the connection's role classification
	// but never carries data itself.
	p.assignRole(s, conn)
	conn.socket = s
	p.sockets.insert(s)
}

// onConnected transitions a dialing socket from await-connect to its
// steady-state callback once the connection is established.
func (p *Program) onConnected(s *Socket) {
	s.wantsWrite = false
	s.wantsRead = true
	if s.role == RoleRelay {
		s.cb = cbRelayInput
	} else {
		s.cb = cbPeerIO
	}
}

// assignRole sets s.role per spec.md §4.4's "role assignment at socket
// construction". It does not allocate the sliding read buffer; callers
// do that separately with allocateRelayBuffer.
func (p *Program) assignRole(s *Socket, conn *Connection) {
	if conn.isInput() {
		s.role = RoleRelay
	} else if conn.Controller {
		s.role = RoleBidirectional
	} else {
		s.role = RoleUnidirectional
	}
}

// allocateRelayBuffer gives s a sliding buffer iff it is a RELAY socket
// that actually carries meter bytes: the dialing INPUT socket, or an
// accepted child of a listening INPUT.
func allocateRelayBuffer(s *Socket) {
	if s.role == RoleRelay && s.readBuf == nil {
		s.readBuf = &slidingBuffer{}
	}
}

// handleAccept is the cbAcceptListener callback: accept one pending
// child connection and classify it from the listening Connection.
func (p *Program) handleAccept(listener *Socket) {
	fd, err := acceptNonblocking(listener.fd)
	if err != nil {
		p.log.Warn("accept failed", "connection", listener.conn.Name, "err", err)
		return
	}
	if fd < 0 {
		return // nothing pending
	}

	child := &Socket{fd: fd, conn: listener.conn, wantsRead: true}
	p.assignRole(child, listener.conn)
	if child.role == RoleRelay {
		allocateRelayBuffer(child)
		child.cb = cbRelayInput
	} else {
		child.cb = cbPeerIO
	}
	p.sockets.insert(child)
}

// awaitConnect is the cbAwaitConnect callback, fired when the socket
// becomes writable — the readiness signal for async-connect completion.
func (p *Program) awaitConnect(s *Socket) {
	p.timers.Cancel(s.timer)
	s.timer = nil

	if err := socketError(s.fd); err != nil {
		p.log.Warn("connect failed", "connection", s.conn.Name, "err", err)
		p.reconnectSocket(s)
		return
	}

	p.onConnected(s)
	p.log.Info("connection established", "connection", s.conn.Name)
}

// cancelConnection is the 5-second async-connect timeout callback.
func (p *Program) cancelConnection(s *Socket) {
	p.log.Warn("connect timed out", "connection", s.conn.Name)
	s.timer = nil
	p.reconnectSocket(s)
}

// reconnectSocket implements spec.md §4.4's reconnect policy: schedule a
// retry for connectors, then close the current socket unconditionally.
// Accepted children never reach here through a path that reconnects —
// they have no retry timer and their listener keeps running.
func (p *Program) reconnectSocket(s *Socket) {
	if s.conn != nil && s.conn.Connector {
		p.scheduleReconnect(s.conn)
	}
	p.closeSocket(s)
}

func (p *Program) scheduleReconnect(conn *Connection) {
	p.timers.Start(conn.ConnectDelay, func(data interface{}) {
		p.log.Info("reconnecting", "connection", conn.Name)
		p.setupConnection(data.(*Connection))
	}, conn)
}

// closeSocket removes s from the table, closes its fd, cancels any
// retry timer it owns, and clears the owning Connection's back-pointer
// if it pointed at s.
func (p *Program) closeSocket(s *Socket) {
	p.sockets.remove(s)
	closeFD(s.fd)
	if s.timer != nil {
		p.timers.Cancel(s.timer)
		s.timer = nil
	}
	if s.conn != nil && s.conn.socket == s {
		s.conn.socket = nil
	}
}
