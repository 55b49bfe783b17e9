package reactor

// forwardFromInput implements spec.md §4.5's first operation: bytes just
// read on the meter-facing RELAY socket are fanned out raw to every
// connected BIDIRECTIONAL peer, and separately fed through the frame
// parser for UNIDIRECTIONAL peers.
func (p *Program) forwardFromInput(src *Socket, data []byte) {
	p.sockets.forEach(func(s *Socket) {
		if s.role == RoleBidirectional && s.cb == cbPeerIO {
			p.bestEffortWrite(s, data)
		}
	})

	if src.readBuf == nil {
		return
	}
	src.readBuf.append(data)
	scanFrames(src.readBuf, frameRouter{p})
}

// forwardToInput implements spec.md §4.5's second operation: bytes read
// from a BIDIRECTIONAL peer are written, unchanged, to the current
// input-carrying socket. If no input socket currently exists, the bytes
// are silently dropped.
func (p *Program) forwardToInput(data []byte) {
	s := p.currentInputSocket()
	if s == nil {
		return
	}
	p.bestEffortWrite(s, data)
}

// currentInputSocket implements the lookup rule from spec.md §4.5 and
// §9: when INPUT is a connector, its Connection.socket is authoritative;
// when INPUT is an acceptor, the first socket in table order carrying
// cbRelayInput is used (spec.md §9 notes this is ambiguous with
// multiple accepted children and adopts this rule explicitly anyway).
func (p *Program) currentInputSocket() *Socket {
	if p.input.Connector {
		return p.input.socket
	}
	var found *Socket
	p.sockets.forEach(func(s *Socket) {
		if found == nil && s.cb == cbRelayInput {
			found = s
		}
	})
	return found
}

// bestEffortWrite performs one non-blocking write, logging short or
// failed writes at WARN without retrying (spec.md §7).
func (p *Program) bestEffortWrite(s *Socket, data []byte) {
	n, err := rawWrite(s.fd, data)
	if err != nil {
		if wouldBlock(err) {
			p.log.Warn("write would block, dropping", "fd", s.fd, "len", len(data))
			return
		}
		p.log.Warn("write failed", "fd", s.fd, "err", err)
		return
	}
	if n != len(data) {
		p.log.Warn("short write", "fd", s.fd, "wrote", n, "wanted", len(data))
	}
}

// frameRouter adapts Program to the frameSink interface scanFrames uses,
// fanning validated frames out to unidirectional listeners and logging
// desync/corruption events at DEBUG per spec.md §7.
type frameRouter struct {
	p *Program
}

func (r frameRouter) onFrame(frame []byte) {
	r.p.sockets.forEach(func(s *Socket) {
		if s.role == RoleUnidirectional && s.cb == cbPeerIO {
			r.p.bestEffortWrite(s, frame)
		}
	})
}

func (r frameRouter) onDesync(e desyncEvent) {
	r.p.log.Debug("frame desync, resyncing", "pos", e.pos, "got", e.got, "want", e.want)
}

func (r frameRouter) onCorrupt(e corruptEvent) {
	if e.badUnitID {
		r.p.log.Debug("bad unit id, dropping frame", "got", e.gotUnit)
		return
	}
	r.p.log.Debug("bad checksum, dropping frame", "got", e.gotSum, "want", e.wantSum)
}
