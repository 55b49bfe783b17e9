package reactor

// relayBufferSize is the fixed backing size for a relay socket's sliding
// read buffer. The region is never grown; on overflow the valid prefix is
// compacted to the start instead.
const relayBufferSize = 8 * 1024

// slidingBuffer is an offset+length view over a fixed backing array.
// Invariant: 0 <= offset <= len(backing)-size.
type slidingBuffer struct {
	backing [relayBufferSize]byte
	offset  int
	size    int
}

// bytes returns the currently valid region of the buffer.
func (b *slidingBuffer) bytes() []byte {
	return b.backing[b.offset : b.offset+b.size]
}

// append copies p onto the end of the valid region, compacting the
// buffer first if there isn't enough room at the current offset. If p
// is larger than the room left even after compaction, it is
// truncated to what fits rather than overrunning the backing array —
// callers are expected to read in chunks small enough that this never
// triggers in practice (see relayReadChunk in reactor.go), but the
// buffer itself never lets a caller violate its own invariant.
func (b *slidingBuffer) append(p []byte) {
	if b.offset+b.size+len(p) > len(b.backing) {
		copy(b.backing[:], b.bytes())
		b.offset = 0
	}
	if room := len(b.backing) - b.size; len(p) > room {
		p = p[:room]
	}
	copy(b.backing[b.offset+b.size:], p)
	b.size += len(p)
}

// advance consumes n bytes from the front of the valid region.
func (b *slidingBuffer) advance(n int) {
	if n > b.size {
		n = b.size
	}
	b.offset += n
	b.size -= n
}
