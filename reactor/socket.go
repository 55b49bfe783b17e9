package reactor

import (
	"container/list"
	"time"
)

// Role classifies a peer socket's fan-out behavior (spec.md §3's "Role
// invariant"): a socket is BIDIRECTIONAL iff its Connection is a
// controller, UNIDIRECTIONAL otherwise, and the INPUT socket is always
// RELAY.
type Role int

const (
	RoleRelay Role = iota
	RoleBidirectional
	RoleUnidirectional
)

func (r Role) String() string {
	switch r {
	case RoleRelay:
		return "relay"
	case RoleBidirectional:
		return "bidirectional"
	case RoleUnidirectional:
		return "unidirectional"
	default:
		return "unknown"
	}
}

// callbackTag names which of the four reactor dispatch behaviors a
// socket currently uses. spec.md §9 calls out that the source used
// callback function-pointer identity as a role predicate and that the
// reimplementation should use an explicit enum instead — this is that
// enum.
type callbackTag int

const (
	cbAcceptListener callbackTag = iota
	cbAwaitConnect
	cbRelayInput
	cbPeerIO
)

// Connection is the static, config-derived description of one logical
// link: the INPUT meter link, or one configured peer (spec.md §3).
type Connection struct {
	Name         string
	Host         string
	Port         uint16
	Connector    bool
	Controller   bool
	ConnectDelay time.Duration

	// input marks the distinguished INPUT connection; set once by
	// Program at construction time.
	input bool

	// socket weakly references the socket currently realizing this
	// connection; cleared when that socket is closed.
	socket *Socket
}

// isInput reports whether c is the program's distinguished INPUT
// connection. Set by Program at construction time.
func (c *Connection) isInput() bool { return c.input }

// Socket is a single live OS-level TCP endpoint (spec.md §3).
type Socket struct {
	fd   int
	conn *Connection // owning Connection; may be nil only transiently

	role       Role
	wantsRead  bool
	wantsWrite bool

	readBuf *slidingBuffer // present iff this socket carries meter bytes
	timer   *Timer         // connect-timeout or reconnect timer, if any
	cb      callbackTag

	// elem is this socket's element in Program.sockets, set on insertion
	// so removal is O(1).
	elem *list.Element
}

// socketTable holds every live socket. Iteration order is the insertion
// order list.List already provides; forEach copies the table's members
// before dispatch so a callback removing the current socket (or any
// other) never invalidates an in-progress scan.
type socketTable struct {
	l *list.List
}

func newSocketTable() *socketTable {
	return &socketTable{l: list.New()}
}

func (t *socketTable) insert(s *Socket) {
	s.elem = t.l.PushBack(s)
}

func (t *socketTable) remove(s *Socket) {
	if s.elem == nil {
		return
	}
	t.l.Remove(s.elem)
	s.elem = nil
}

// forEach calls fn for every socket in the table at the time of the
// call, in table order. The members are copied before the first call,
// so fn may safely remove any socket, including the one it was just
// given; a socket removed before its turn is skipped, and a socket
// inserted during the scan is not visited by this call.
func (t *socketTable) forEach(fn func(s *Socket)) {
	snapshot := make([]*Socket, 0, t.l.Len())
	for e := t.l.Front(); e != nil; e = e.Next() {
		snapshot = append(snapshot, e.Value.(*Socket))
	}
	for _, s := range snapshot {
		if s.elem != nil {
			fn(s)
		}
	}
}
