// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: blockq.go — Blocking payload queue for host-side harness threads
//
// Purpose:
//   - Lets producer goroutines hand payloads to a side's poll loop and wait
//     for space, and lets consumer goroutines wait for results.
//
// Notes:
//   - Lives in process memory, never in the shared image.
//   - Same full/empty rule as the mailbox rings: one slot is sacrificed.
//   - The poll loop only calls TryEnqueue/TryDequeue; only harness
//     goroutines block.
// ─────────────────────────────────────────────────────────────────────────────

package blockq

import (
	"context"
	"sync"

	"mailbox/ring"
	"mailbox/types"
)

// Queue is a mutex/condition-variable protected ring of payloads.
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond
	buf      []types.Payload
	head     int
	tail     int
}

// New creates a queue with the given number of slots (capacity slots-1).
func New(slots int) *Queue {
	if slots < 2 {
		panic("blockq: need at least two slots")
	}
	q := &Queue{buf: make([]types.Payload, slots)}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

func (q *Queue) empty() bool { return q.head == q.tail }

func (q *Queue) full() bool { return (q.head+1)%len(q.buf) == q.tail }

func (q *Queue) push(p types.Payload) {
	q.buf[q.head] = p
	q.head = (q.head + 1) % len(q.buf)
	q.notEmpty.Signal()
}

func (q *Queue) pop() types.Payload {
	p := q.buf[q.tail]
	q.tail = (q.tail + 1) % len(q.buf)
	q.notFull.Signal()
	return p
}

// IsEmpty reports whether the queue holds no payload.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.empty()
}

// IsFull reports whether a push would block.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.full()
}

// Len returns the number of queued payloads.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return (q.head + len(q.buf) - q.tail) % len(q.buf)
}

// TryEnqueue adds p or returns ring.ErrFull.
func (q *Queue) TryEnqueue(p types.Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full() {
		return ring.ErrFull
	}
	q.push(p)
	return nil
}

// TryDequeue removes the oldest payload or returns ring.ErrEmpty.
func (q *Queue) TryDequeue() (types.Payload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.empty() {
		return types.Payload{}, ring.ErrEmpty
	}
	return q.pop(), nil
}

// wake releases every waiter so it can observe ctx cancellation.
func (q *Queue) wake() {
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Enqueue waits until there is room for p or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, p types.Payload) error {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	q.push(p)
	return nil
}

// Dequeue waits until a payload is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (types.Payload, error) {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.empty() {
		if err := ctx.Err(); err != nil {
			return types.Payload{}, err
		}
		q.notEmpty.Wait()
	}
	return q.pop(), nil
}
