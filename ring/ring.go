// ============================================================================
// LO-PRI MAILBOX RING QUEUE
// ============================================================================
//
// Single-producer/single-consumer ring of 64-byte payloads living inside the
// shared mailbox image. Four instances exist per image, one per direction
// and message kind.
//
// Core capabilities:
//   - Lock-free SPSC operation across two address spaces
//   - Fixed 15-slot capacity, one slot sacrificed to tell full from empty
//   - Non-blocking Push/Pop callable from a bounded-time polling context
//
// Ownership model:
//   - The producer is the only writer of head and of the slot array
//   - The consumer is the only writer of tail
//   - Both indices advance modulo capacity; a slot is written before head
//     is published and read after head is observed
//
// Safety model:
//   - A Queue is bound to one side's View; calling the wrong end returns
//     ErrNotOwner instead of writing a word owned by the peer
//   - Indices outside [0, capacity) were not produced by a conforming peer
//     and are reported as ErrCorrupt without touching the ring

package ring

import (
	"errors"
	"fmt"

	"mailbox/constants"
	"mailbox/image"
	"mailbox/types"
)

var (
	// ErrFull is returned by Push when the write would overflow the ring.
	ErrFull = errors.New("ring: queue full")
	// ErrEmpty is returned by Pop when no payload is available.
	ErrEmpty = errors.New("ring: queue empty")
	// ErrNotOwner is returned when a side calls the end of the ring it
	// does not own.
	ErrNotOwner = errors.New("ring: side does not own this end of the queue")
	// ErrCorrupt is returned when an index is outside the ring.
	ErrCorrupt = errors.New("ring: index out of range")
)

// Capacity is the number of slots in every ring.
const Capacity = constants.QueueSlots

// ============================================================================
// QUEUE HANDLE
// ============================================================================

// Queue is one side's handle on a lo-pri ring. It holds no state of its own;
// head and tail live in the image.
type Queue struct {
	v  *image.View
	id image.QueueID
}

// New binds ring id to side view v.
func New(v *image.View, id image.QueueID) Queue {
	return Queue{v: v, id: id}
}

// ID returns the ring this handle is bound to.
func (q Queue) ID() image.QueueID { return q.id }

// IsProducer reports whether this handle may Push.
func (q Queue) IsProducer() bool { return q.v.Side() == q.id.Producer() }

//go:nosplit
//go:inline
func (q Queue) indices() (head, tail uint32) {
	return q.v.Load(q.id.HeadOff()), q.v.Load(q.id.TailOff())
}

// IsEmpty reports head == tail.
func (q Queue) IsEmpty() bool {
	head, tail := q.indices()
	return head == tail
}

// IsFull reports (head+1) mod capacity == tail.
func (q Queue) IsFull() bool {
	head, tail := q.indices()
	return (head+1)%Capacity == tail
}

// Len returns the number of queued payloads as seen right now.
func (q Queue) Len() uint32 {
	head, tail := q.indices()
	return (head + Capacity - tail) % Capacity
}

// ============================================================================
// PRODUCER
// ============================================================================

// Push copies p into the slot at head and then publishes head+1.
func (q Queue) Push(p types.Payload) error {
	if q.v.Side() != q.id.Producer() {
		return fmt.Errorf("%w: %s push on %s", ErrNotOwner, q.v.Side(), q.id)
	}
	head, tail := q.indices()
	if head >= Capacity || tail >= Capacity {
		return fmt.Errorf("%w: %s head=%d tail=%d", ErrCorrupt, q.id, head, tail)
	}

	next := (head + 1) % Capacity
	if next == tail {
		return ErrFull
	}

	q.v.WritePayload(q.id.SlotOff(head), &p)
	q.v.Store(q.id.HeadOff(), next)
	return nil
}

// ============================================================================
// CONSUMER
// ============================================================================

// Pop copies the payload at tail and then publishes tail+1.
func (q Queue) Pop() (types.Payload, error) {
	if q.v.Side() != q.id.Consumer() {
		return types.Payload{}, fmt.Errorf("%w: %s pop on %s", ErrNotOwner, q.v.Side(), q.id)
	}
	head, tail := q.indices()
	if head >= Capacity || tail >= Capacity {
		return types.Payload{}, fmt.Errorf("%w: %s head=%d tail=%d", ErrCorrupt, q.id, head, tail)
	}
	if head == tail {
		return types.Payload{}, ErrEmpty
	}

	p := q.v.ReadPayload(q.id.SlotOff(tail))
	q.v.Store(q.id.TailOff(), (tail+1)%Capacity)
	return p, nil
}
