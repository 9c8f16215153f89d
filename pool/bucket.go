package pool

// bucket holds same-sized reusable buffers: a bounded free list plus an
// in-use count. Buffers are allocated with cap == itemSize so Release can
// identify the owning bucket from the buffer itself.
type bucket struct {
	itemSize int
	free     [][]byte
	inUse    int64
}

// pop removes and returns the most recently freed buffer, nil if empty.
// LIFO order keeps recently used memory hot.
func (b *bucket) pop() []byte {
	n := len(b.free)
	if n == 0 {
		return nil
	}
	buf := b.free[n-1]
	b.free[n-1] = nil
	b.free = b.free[:n-1]
	return buf
}

func (b *bucket) push(buf []byte) {
	b.free = append(b.free, buf)
}

// Counter is one side of the pool's used/free accounting.
type Counter struct {
	Count int64
	Bytes int64
}

func (c *Counter) add(bytes int64) {
	c.Count++
	c.Bytes += bytes
}

func (c *Counter) sub(bytes int64) {
	c.Count--
	c.Bytes -= bytes
	if c.Count < 0 || c.Bytes < 0 {
		// Accounting is exact by construction; going negative means a
		// double release slipped through.
		panic("pool: counter underflow")
	}
}
