/*
Package stream provides single-producer single-consumer ring buffers
carrying sample blocks between connected ports.

One ring is allocated per connection when the connection is created and
is released together with the last graph snapshot referencing it. Both
ends are wait-free: the producer never blocks and the consumer reads
silence when no block is available yet.
*/
package stream

import (
	"sync/atomic"

	"github.com/dudk/patch/metric"
	"github.com/dudk/patch/signal"
)

// DefaultCapacity is the ring capacity in blocks used for new
// connections. Two is the minimum that lets the producer write block N+1
// while the consumer still holds block N during reordering transitions.
const DefaultCapacity = 4

// Ring is a fixed-capacity SPSC block queue.
type Ring struct {
	slots []signal.Block
	// head counts written blocks, tail counts read blocks. Both only
	// grow; slot index is counter modulo capacity.
	head atomic.Uint64
	tail atomic.Uint64

	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// NewRing returns a ring with capacity blocks of blockSize samples. All
// slot memory is allocated here, never on the streaming path.
func NewRing(capacity, blockSize int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	r := &Ring{slots: make([]signal.Block, capacity)}
	for i := range r.slots {
		r.slots[i] = signal.Make(blockSize)
	}
	return r
}

// Write copies the block into the ring. If the consumer has fallen a
// full cycle behind, the oldest unread block is dropped and counted as
// an overrun; the write itself never blocks.
func (r *Ring) Write(b signal.Block) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail == uint64(len(r.slots)) {
		// Full. Claim the oldest slot from the consumer; if the consumer
		// read it concurrently the CAS fails and space exists anyway.
		if r.tail.CompareAndSwap(tail, tail+1) {
			r.overruns.Add(1)
			metric.Add(metric.OverrunCounter, 1)
		}
	}
	r.slots[head%uint64(len(r.slots))].Copy(b)
	r.head.Store(head + 1)
}

// Read copies the oldest unread block into dst and reports whether a
// block was available. An empty ring zero-fills dst and counts an
// underrun: reading before the producer has written is expected during
// stream startup and topology changes, not an error.
func (r *Ring) Read(dst signal.Block) bool {
	for {
		tail := r.tail.Load()
		if tail == r.head.Load() {
			r.underruns.Add(1)
			metric.Add(metric.UnderrunCounter, 1)
			dst.Zero()
			return false
		}
		dst.Copy(r.slots[tail%uint64(len(r.slots))])
		// The producer may have reclaimed this slot while we copied;
		// retry with the advanced tail if so.
		if r.tail.CompareAndSwap(tail, tail+1) {
			return true
		}
	}
}

// Flush discards all unread blocks. Used to drop built up latency when
// the graph is resynced.
func (r *Ring) Flush() {
	r.tail.Store(r.head.Load())
}

// Overruns returns number of blocks dropped on write.
func (r *Ring) Overruns() uint64 {
	return r.overruns.Load()
}

// Underruns returns number of reads that resolved to silence.
func (r *Ring) Underruns() uint64 {
	return r.underruns.Load()
}
