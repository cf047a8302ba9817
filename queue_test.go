// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfl_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfl"
	"code.hybscloud.com/lfl/epoch"
)

// =============================================================================
// Test Helpers
// =============================================================================

// tagStride encodes producer-tagged values as producerID*tagStride + seq.
const tagStride = 1_000_000

// deadlineFor scales a base timeout for stress tests.
func deadlineFor(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// =============================================================================
// Queue - Basic Operations
// =============================================================================

func TestQueueBasic(t *testing.T) {
	q := lfl.NewQueue[int64]()

	if !q.IsEmpty() {
		t.Fatal("IsEmpty on new queue: got false, want true")
	}

	// Empty queue returns ErrWouldBlock
	if _, err := q.Dequeue(); !errors.Is(err, lfl.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}

	v := int64(37)
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue(37): %v", err)
	}
	if q.IsEmpty() {
		t.Fatal("IsEmpty after Enqueue: got true, want false")
	}

	v = 48
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue(48): %v", err)
	}

	// FIFO order
	got, err := q.Dequeue()
	if err != nil || got != 37 {
		t.Fatalf("Dequeue: got (%d, %v), want (37, nil)", got, err)
	}
	if q.IsEmpty() {
		t.Fatal("IsEmpty with one element left: got true, want false")
	}
	got, err = q.Dequeue()
	if err != nil || got != 48 {
		t.Fatalf("Dequeue: got (%d, %v), want (48, nil)", got, err)
	}

	if !q.IsEmpty() {
		t.Fatal("IsEmpty after draining: got false, want true")
	}
}

// TestQueueEmptyIdempotent verifies that Dequeue on an empty queue is a
// pure observation: repeated calls keep returning ErrWouldBlock and do
// not disturb subsequent operations.
func TestQueueEmptyIdempotent(t *testing.T) {
	q := lfl.NewQueue[int]()

	for i := range 10 {
		if _, err := q.Dequeue(); !errors.Is(err, lfl.ErrWouldBlock) {
			t.Fatalf("Dequeue(%d) on empty: got %v, want ErrWouldBlock", i, err)
		}
		if !q.IsEmpty() {
			t.Fatalf("IsEmpty after failed Dequeue(%d): got false, want true", i)
		}
	}

	v := 7
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Dequeue()
	if err != nil || got != 7 {
		t.Fatalf("Dequeue: got (%d, %v), want (7, nil)", got, err)
	}
}

// TestQueueIsEmptyDoesNotPop verifies that IsEmpty never consumes an
// element.
func TestQueueIsEmptyDoesNotPop(t *testing.T) {
	q := lfl.NewQueue[int]()

	v := 20
	q.Enqueue(&v)
	q.Enqueue(&v)

	if q.IsEmpty() {
		t.Fatal("IsEmpty: got true, want false")
	}
	if q.IsEmpty() {
		t.Fatal("IsEmpty: got true, want false")
	}
	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("Dequeue after IsEmpty: %v", err)
	}
	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("Dequeue after IsEmpty: %v", err)
	}
}

func TestQueueManySequential(t *testing.T) {
	q := lfl.NewQueue[int]()

	const n = 200
	for i := range n {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if q.IsEmpty() {
		t.Fatal("IsEmpty after enqueues: got true, want false")
	}
	for i := range n {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if got != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, got, i)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after draining: got false, want true")
	}
}

// TestQueueRecycling drains and refills the queue repeatedly so that
// nodes pass through retirement and back into circulation, verifying
// FIFO order survives node reuse.
func TestQueueRecycling(t *testing.T) {
	col := epoch.NewCollector()
	q := lfl.NewQueueWith[int](col)

	for round := range 50 {
		for i := range 64 {
			v := round*64 + i
			q.Enqueue(&v)
		}
		for i := range 64 {
			got, err := q.Dequeue()
			if err != nil {
				t.Fatalf("round %d: Dequeue(%d): %v", round, i, err)
			}
			if got != round*64+i {
				t.Fatalf("round %d: Dequeue(%d): got %d, want %d", round, i, got, round*64+i)
			}
		}
		col.Flush()
	}
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after rounds: got false, want true")
	}
}

func TestQueueDequeueWait(t *testing.T) {
	if lfl.RaceEnabled {
		t.Skip("skip: concurrent handoff incompatible with race detector")
	}

	q := lfl.NewQueue[int]()

	v := 42
	q.Enqueue(&v)
	if got := q.DequeueWait(); got != 42 {
		t.Fatalf("DequeueWait: got %d, want 42", got)
	}

	// Delayed producer: DequeueWait must spin until the value arrives.
	done := make(chan int, 1)
	go func() {
		done <- q.DequeueWait()
	}()
	time.Sleep(10 * time.Millisecond)
	v = 99
	q.Enqueue(&v)

	select {
	case got := <-done:
		if got != 99 {
			t.Fatalf("DequeueWait: got %d, want 99", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout: DequeueWait never returned")
	}
}

// =============================================================================
// Queue - Teardown
// =============================================================================

func TestQueueReset(t *testing.T) {
	q := lfl.NewQueue[int]()

	const n = 5
	for i := range n {
		v := i
		q.Enqueue(&v)
	}
	// Consume one so a promoted sentinel is in the chain; its slot must
	// not be disposed.
	if got, err := q.Dequeue(); err != nil || got != 0 {
		t.Fatalf("Dequeue: got (%d, %v), want (0, nil)", got, err)
	}

	var disposed []int
	q.Reset(func(v int) { disposed = append(disposed, v) })

	if len(disposed) != n-1 {
		t.Fatalf("dispose count: got %d, want %d", len(disposed), n-1)
	}
	for i, v := range disposed {
		if v != i+1 {
			t.Fatalf("disposed[%d]: got %d, want %d", i, v, i+1)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after Reset: got false, want true")
	}

	// The queue stays usable after Reset.
	v := 123
	q.Enqueue(&v)
	if got, err := q.Dequeue(); err != nil || got != 123 {
		t.Fatalf("Dequeue after Reset: got (%d, %v), want (123, nil)", got, err)
	}
}

func TestQueueResetEmpty(t *testing.T) {
	q := lfl.NewQueue[int]()

	calls := 0
	q.Reset(func(int) { calls++ })
	if calls != 0 {
		t.Fatalf("dispose calls on empty Reset: got %d, want 0", calls)
	}

	// nil dispose is allowed.
	v := 1
	q.Enqueue(&v)
	q.Reset(nil)
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after Reset(nil): got false, want true")
	}
}

// =============================================================================
// Queue - Concurrency
// =============================================================================

// TestQueueSPSC pushes 0..n from one goroutine while another pops, and
// verifies the popped sequence is exactly 0..n in order.
func TestQueueSPSC(t *testing.T) {
	if lfl.RaceEnabled {
		t.Skip("skip: stress test incompatible with race detector")
	}

	q := lfl.NewQueueWith[int64](epoch.NewCollector())

	n := int64(1_000_000)
	if testing.Short() {
		n = 100_000
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		deadline := deadlineFor(60 * time.Second)
		backoff := iox.Backoff{}
		next := int64(0)
		for next < n {
			v, err := q.Dequeue()
			if err != nil {
				if time.Now().After(deadline) {
					t.Error("timeout: consumer stalled")
					return
				}
				backoff.Wait()
				continue
			}
			backoff.Reset()
			if v != next {
				t.Errorf("out of order: got %d, want %d", v, next)
				return
			}
			next++
		}
	}()

	for i := int64(0); i < n; i++ {
		v := i
		q.Enqueue(&v)
	}
	wg.Wait()

	if !t.Failed() && !q.IsEmpty() {
		t.Fatal("IsEmpty after SPSC run: got false, want true")
	}
}

// TestQueueSPMC verifies that with a single producer every consumer
// observes a strictly increasing subsequence.
func TestQueueSPMC(t *testing.T) {
	if lfl.RaceEnabled {
		t.Skip("skip: stress test incompatible with race detector")
	}

	q := lfl.NewQueueWith[int64](epoch.NewCollector())

	const numC = 3
	n := int64(300_000)
	if testing.Short() {
		n = 30_000
	}

	var consumed atomix.Int64
	var wg sync.WaitGroup
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := deadlineFor(60 * time.Second)
			backoff := iox.Backoff{}
			last := int64(-1)
			for consumed.Load() < n {
				v, err := q.Dequeue()
				if err != nil {
					if time.Now().After(deadline) {
						t.Error("timeout: consumer stalled")
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				if v <= last {
					t.Errorf("not increasing: got %d after %d", v, last)
					return
				}
				last = v
				consumed.Add(1)
			}
		}()
	}

	for i := int64(0); i < n; i++ {
		v := i
		q.Enqueue(&v)
	}
	wg.Wait()
}

// TestQueueMPMC runs tagged producers against multiple consumers and
// verifies exactly-once delivery plus per-producer order across the
// combined observations of each consumer.
func TestQueueMPMC(t *testing.T) {
	if lfl.RaceEnabled {
		t.Skip("skip: stress test incompatible with race detector")
	}

	q := lfl.NewQueueWith[int](epoch.NewCollector())

	const (
		numP = 2
		numC = 2
	)
	itemsPerProd := 200_000
	if testing.Short() {
		itemsPerProd = 20_000
	}
	expectedTotal := numP * itemsPerProd

	seen := make([]atomix.Int32, expectedTotal)
	var consumed atomix.Int64
	var wg sync.WaitGroup

	for p := range numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range itemsPerProd {
				v := id*tagStride + i
				q.Enqueue(&v)
			}
		}(p)
	}

	perConsumerLast := make([][numP]int, numC)
	for c := range numC {
		wg.Add(1)
		go func(cid int) {
			defer wg.Done()
			deadline := deadlineFor(120 * time.Second)
			backoff := iox.Backoff{}
			for p := range numP {
				perConsumerLast[cid][p] = -1
			}
			for consumed.Load() < int64(expectedTotal) {
				v, err := q.Dequeue()
				if err != nil {
					if time.Now().After(deadline) {
						t.Error("timeout: consumer stalled")
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				id, seq := v/tagStride, v%tagStride
				if id < 0 || id >= numP || seq < 0 || seq >= itemsPerProd {
					t.Errorf("value out of range: %d", v)
					return
				}
				// Per-producer order within one consumer's observations.
				if seq <= perConsumerLast[cid][id] {
					t.Errorf("producer %d order violated: seq %d after %d",
						id, seq, perConsumerLast[cid][id])
					return
				}
				perConsumerLast[cid][id] = seq
				seen[id*itemsPerProd+seq].Add(1)
				consumed.Add(1)
			}
		}(c)
	}

	wg.Wait()
	if t.Failed() {
		return
	}

	// Multiset equality: everything delivered exactly once.
	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("value %d delivered %d times, want 1", i, got)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("IsEmpty after MPMC run: got false, want true")
	}
}

// TestQueueMPMCWait exercises the spinning DequeueWait variant under
// contention.
func TestQueueMPMCWait(t *testing.T) {
	if lfl.RaceEnabled {
		t.Skip("skip: stress test incompatible with race detector")
	}

	q := lfl.NewQueueWith[int](epoch.NewCollector())

	const (
		numP         = 4
		numC         = 4
		itemsPerProd = 10_000
	)
	expectedTotal := numP * itemsPerProd

	seen := make([]atomix.Int32, expectedTotal)
	var wg sync.WaitGroup

	for p := range numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range itemsPerProd {
				v := id*tagStride + i
				q.Enqueue(&v)
			}
		}(p)
	}

	// Each consumer takes a fixed share, so DequeueWait always has a
	// value to wait for.
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range expectedTotal / numC {
				v := q.DequeueWait()
				seen[(v/tagStride)*itemsPerProd+v%tagStride].Add(1)
			}
		}()
	}

	wg.Wait()
	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("value %d delivered %d times, want 1", i, got)
		}
	}
}
