package channel

// ring is a fixed-storage byte ring. The storage is caller-installed;
// the ring never grows.
type ring struct {
	buf   []byte
	r     int
	count int
}

func (b *ring) init(buf []byte, filled int) {
	b.buf = buf
	b.r = 0
	b.count = filled
}

func (b *ring) len() int  { return b.count }
func (b *ring) free() int { return len(b.buf) - b.count }

// write copies as much of p as fits and returns the number of bytes
// taken.
func (b *ring) write(p []byte) int {
	n := b.free()
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	w := (b.r + b.count) % len(b.buf)
	c := copy(b.buf[w:], p[:n])
	if c < n {
		copy(b.buf, p[c:n])
	}
	b.count += n
	return n
}

// read copies up to len(p) buffered bytes into p and consumes them.
func (b *ring) read(p []byte) int {
	n := b.peek(p)
	b.discard(n)
	return n
}

// peek copies up to len(p) buffered bytes into p without consuming.
func (b *ring) peek(p []byte) int {
	n := b.count
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	c := copy(p[:n], b.buf[b.r:])
	if c < n {
		copy(p[c:n], b.buf)
	}
	return n
}

// discard consumes n buffered bytes without copying them out.
func (b *ring) discard(n int) {
	if n > b.count {
		n = b.count
	}
	if len(b.buf) > 0 {
		b.r = (b.r + n) % len(b.buf)
	}
	b.count -= n
}
