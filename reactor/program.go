package reactor

import "sync/atomic"

// Program owns every socket and timer for one relay instance: the
// INPUT connection, its configured peers, the socket table, and the
// timer wheel (spec.md §5: "the program owns the socket table and
// timer wheel").
type Program struct {
	input *Connection
	peers []*Connection

	sockets *socketTable
	timers  *TimerWheel
	log     Logger

	// stopping is set by Stop, which spec.md §5 allows to be called
	// from outside the reactor goroutine (e.g. a signal handler), and
	// read once per iteration by Run; atomic.Bool gives that cross-
	// goroutine signal a defined, race-free meaning.
	stopping atomic.Bool
}

// NewProgram builds a Program for the given INPUT connection and peer
// list. log may be nil, in which case logging is discarded.
func NewProgram(input *Connection, peers []*Connection, log Logger) *Program {
	input.input = true
	if log == nil {
		log = nopLogger{}
	}
	return &Program{
		input:   input,
		peers:   peers,
		sockets: newSocketTable(),
		timers:  NewTimerWheel(),
		log:     log,
	}
}

// Start performs the initial setup for every configured connection:
// the INPUT link first, then each peer in configuration order
// (spec.md §4.4's initial_setup). Per-connection failures are logged
// and do not prevent the others from starting.
func (p *Program) Start() {
	p.setupConnection(p.input)
	for _, conn := range p.peers {
		p.setupConnection(conn)
	}
}

// Close tears down every live socket and pending timer. Safe to call
// after Run returns.
func (p *Program) Close() {
	var sockets []*Socket
	p.sockets.forEach(func(s *Socket) { sockets = append(sockets, s) })
	for _, s := range sockets {
		p.closeSocket(s)
	}
	for len(p.timers.heap) > 0 {
		p.timers.Cancel(p.timers.heap[0])
	}
}
