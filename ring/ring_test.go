// ============================================================================
// LO-PRI RING CORRECTNESS VALIDATION SUITE
// ============================================================================
//
// Test categories:
//   - FIFO ordering within capacity
//   - Capacity boundary: capacity-1 pushes succeed, one more overflows
//   - Wraparound: indefinite single push/pop never desynchronizes indices
//   - Ownership: wrong-end calls are refused without touching the image
//   - Cross-goroutine SPSC transfer through the shared image

package ring

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"mailbox/image"
	"mailbox/types"
)

// ============================================================================
// TEST UTILITIES AND HELPERS
// ============================================================================

// testPayload generates a deterministic payload for seed
func testPayload(seed uint32) types.Payload {
	p := types.Payload{ServiceID: seed, CommandID: seed * 3, SenderTag: uint64(seed) << 33}
	for i := range p.Data {
		p.Data[i] = seed ^ uint32(i)
	}
	return p
}

// pair returns producer and consumer handles for id on a fresh image
func pair(id image.QueueID) (prod, cons Queue, img *image.Image) {
	img = image.New()
	prod = New(img.View(id.Producer()), id)
	cons = New(img.View(id.Consumer()), id)
	return
}

// ============================================================================
// BASIC OPERATIONS
// ============================================================================

func TestEmptyOnFreshImage(t *testing.T) {
	for _, id := range image.Queues {
		prod, cons, _ := pair(id)
		if !prod.IsEmpty() || !cons.IsEmpty() {
			t.Errorf("%s not empty on a zero image", id)
		}
		if _, err := cons.Pop(); !errors.Is(err, ErrEmpty) {
			t.Errorf("%s: pop on empty = %v", id, err)
		}
	}
}

func TestFIFOWithinCapacity(t *testing.T) {
	for _, id := range image.Queues {
		t.Run(id.String(), func(t *testing.T) {
			prod, cons, _ := pair(id)
			for i := uint32(0); i < Capacity-1; i++ {
				if err := prod.Push(testPayload(i)); err != nil {
					t.Fatalf("push %d: %v", i, err)
				}
			}
			if cons.Len() != Capacity-1 {
				t.Fatalf("Len = %d", cons.Len())
			}
			for i := uint32(0); i < Capacity-1; i++ {
				got, err := cons.Pop()
				if err != nil {
					t.Fatalf("pop %d: %v", i, err)
				}
				if got != testPayload(i) {
					t.Fatalf("pop %d = %+v", i, got)
				}
			}
			if !cons.IsEmpty() {
				t.Fatal("ring not empty after draining")
			}
		})
	}
}

// ============================================================================
// CAPACITY MANAGEMENT
// ============================================================================

func TestOverflowAtCapacity(t *testing.T) {
	prod, cons, img := pair(image.M2SReq)
	for i := uint32(0); i < Capacity-1; i++ {
		if err := prod.Push(testPayload(i)); err != nil {
			t.Fatalf("push %d returned %v before the ring was full", i, err)
		}
	}
	if !prod.IsFull() {
		t.Fatal("IsFull false after capacity-1 pushes")
	}

	before := img.Fingerprint()
	if err := prod.Push(testPayload(99)); !errors.Is(err, ErrFull) {
		t.Fatalf("push on full = %v, want ErrFull", err)
	}
	if img.Fingerprint() != before {
		t.Fatal("overflowing push modified the image")
	}

	if got, _ := cons.Pop(); got != testPayload(0) {
		t.Fatalf("first pop after overflow = %+v", got)
	}
	if err := prod.Push(testPayload(99)); err != nil {
		t.Fatalf("push after pop: %v", err)
	}
}

func TestWraparoundIdempotence(t *testing.T) {
	prod, cons, img := pair(image.S2MRsp)

	// Keep capacity-1 payloads resident while cycling one more through.
	for i := uint32(0); i < Capacity-2; i++ {
		if err := prod.Push(testPayload(i)); err != nil {
			t.Fatal(err)
		}
	}
	next := uint32(0)
	for i := uint32(Capacity - 2); i < 10_000; i++ {
		if err := prod.Push(testPayload(i)); err != nil {
			t.Fatalf("cycle %d push: %v", i, err)
		}
		got, err := cons.Pop()
		if err != nil {
			t.Fatalf("cycle %d pop: %v", i, err)
		}
		if got != testPayload(next) {
			t.Fatalf("cycle %d popped seed %d, want %d", i, got.ServiceID, next)
		}
		next++

		head := img.Load(image.S2MRsp.HeadOff())
		tail := img.Load(image.S2MRsp.TailOff())
		if head >= Capacity || tail >= Capacity {
			t.Fatalf("cycle %d: indices escaped ring head=%d tail=%d", i, head, tail)
		}
		if cons.Len() != Capacity-2 {
			t.Fatalf("cycle %d: occupancy drifted to %d", i, cons.Len())
		}
	}
}

// ============================================================================
// OWNERSHIP & CORRUPTION
// ============================================================================

func TestWrongEndIsRefused(t *testing.T) {
	prod, cons, _ := pair(image.M2SRsp)

	if err := cons.Push(testPayload(1)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("consumer push = %v", err)
	}
	if _, err := prod.Pop(); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("producer pop = %v", err)
	}
	if !prod.IsProducer() || cons.IsProducer() {
		t.Fatal("IsProducer")
	}
}

func TestCorruptIndexIsReported(t *testing.T) {
	prod, cons, img := pair(image.S2MReq)
	// The master owns the tail of s2m_req.
	img.View(image.Master).Store(image.S2MReq.TailOff(), Capacity+3)

	if err := prod.Push(testPayload(1)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("push = %v, want ErrCorrupt", err)
	}
	if _, err := cons.Pop(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("pop = %v, want ErrCorrupt", err)
	}
}

// ============================================================================
// CONCURRENT SPSC TRANSFER
// ============================================================================

func TestConcurrentTransferPreservesOrder(t *testing.T) {
	const total = 20_000
	prod, cons, _ := pair(image.M2SReq)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < total; {
			err := prod.Push(testPayload(i))
			switch {
			case err == nil:
				i++
			case errors.Is(err, ErrFull):
				runtime.Gosched()
			default:
				t.Errorf("push: %v", err)
				return
			}
		}
	}()

	for want := uint32(0); want < total; {
		got, err := cons.Pop()
		if errors.Is(err, ErrEmpty) {
			runtime.Gosched()
			continue
		}
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != testPayload(want) {
			t.Fatalf("pop %d = seed %d", want, got.ServiceID)
		}
		want++
	}
	wg.Wait()
}

// ============================================================================
// BENCHMARKS
// ============================================================================

func BenchmarkPushPop(b *testing.B) {
	prod, cons, _ := pair(image.M2SReq)
	p := testPayload(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = prod.Push(p)
		_, _ = cons.Pop()
	}
}
