// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfl

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/lfl/epoch"
)

// node is one cell of the linked chain. The data slot is meaningful for
// every node except the current sentinel: the sentinel's slot is either
// never written (the construction-time sentinel) or already moved out
// (a consumed node promoted to sentinel). The slot is written exactly
// once by a producer and moved out at most once by the consumer that wins
// the head advance; the CAS protocol makes any other access unreachable.
type node[T any] struct {
	next atomic.Pointer[node[T]]
	data T
}

// Queue is an unbounded lock-free multi-producer multi-consumer FIFO.
//
// Based on the Michael & Scott algorithm (PODC 1996): a singly-linked
// chain of nodes behind two atomic pointers. head always points at a
// sentinel node whose successor carries the oldest payload; tail is a
// hint to the newest node and may lag, repaired cooperatively by
// whichever operation next observes the lag.
//
// Invariants, at every observable instant:
//   - the sentinel is reachable from head; head is never nil
//   - the queue is empty iff the sentinel's successor is nil
//   - head only advances, one winning CAS per step
//   - each payload is delivered to exactly one Dequeue, none are dropped
//
// Operations are lock-free but not wait-free: an individual call may
// retry under contention, yet some call always completes.
//
// Unlinked nodes are retired through an [epoch.Collector] and recycled
// into a pool once no in-flight operation can still reference them; the
// grace period is what keeps a recycled node from re-entering the chain
// at its old address while a stalled CAS still compares against it.
//
// Memory: one node allocation per element, amortized away by recycling.
type Queue[T any] struct {
	_    pad
	head atomic.Pointer[node[T]]
	_    pad
	tail atomic.Pointer[node[T]]
	_    pad
	col  *epoch.Collector
	pool sync.Pool
}

// NewQueue creates an empty queue protected by the default collector.
func NewQueue[T any]() *Queue[T] {
	return NewQueueWith[T](epoch.Default())
}

// NewQueueWith creates an empty queue protected by c. A dedicated
// collector keeps the queue's grace periods independent from other
// structures; sharing a collector is equally correct.
func NewQueueWith[T any](c *epoch.Collector) *Queue[T] {
	q := &Queue[T]{col: c}
	q.pool.New = func() any { return new(node[T]) }

	// head and tail share one sentinel; both are non-nil forever after.
	sentinel := new(node[T])
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue adds an element to the queue (non-blocking, lock-free).
// Always returns nil: the queue is unbounded and cannot be full.
func (q *Queue[T]) Enqueue(elem *T) error {
	n := q.pool.Get().(*node[T])
	n.data = *elem

	g := q.col.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		// tail is never nil: the sentinel outlives every unlink.
		tail := epoch.Load(&g, &q.tail)
		next := epoch.Load(&g, &tail.next)

		if next != nil {
			// Observed tail is stale: a finished link hasn't swung tail
			// yet. Help swing it and retry; success or failure is
			// irrelevant, either way tail has moved forward.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		// Link the new node. The CAS publishes the payload write above:
		// the release edge producers need is the success edge here.
		if tail.next.CompareAndSwap(nil, n) {
			// Best-effort swing; on failure another thread already
			// helped on our behalf.
			q.tail.CompareAndSwap(tail, n)
			return nil
		}
		sw.Once()
	}
}

// Dequeue removes and returns the oldest element (non-blocking,
// lock-free). Returns (zero-value, ErrWouldBlock) iff the queue was
// observed empty at that instant.
func (q *Queue[T]) Dequeue() (T, error) {
	g := q.col.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		// head is never nil: the sentinel.
		head := epoch.Load(&g, &q.head)
		next := epoch.Load(&g, &head.next)

		// Emptiness depends only on the sentinel's successor and must be
		// decided before consulting tail: an empty check never pops.
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}

		if tail := epoch.Load(&g, &q.tail); tail == head {
			// tail lags a full step behind the node we are about to
			// unlink; help it forward first so it can't point at a
			// retired node. Outcome ignored.
			q.tail.CompareAndSwap(tail, next)
		}

		if q.head.CompareAndSwap(head, next) {
			// Winning the CAS grants exclusive rights to next's payload.
			// next is the new sentinel; its slot is never read again, so
			// clear it to release the reference.
			data := next.data
			var zero T
			next.data = zero
			g.Retire(func() { q.recycle(head) })
			return data, nil
		}
		sw.Once()
	}
}

// DequeueWait removes and returns the oldest element, spinning until one
// is available. Each attempt re-pins the collector, so waiting never
// holds up reclamation. There is no timeout; callers needing bounded
// waiting must layer their own.
func (q *Queue[T]) DequeueWait() T {
	sw := spin.Wait{}
	for {
		if v, err := q.Dequeue(); err == nil {
			return v
		}
		sw.Once()
	}
}

// IsEmpty reports whether the queue was observed empty. Best-effort
// snapshot: may be stale the instant it returns under concurrent
// mutation.
func (q *Queue[T]) IsEmpty() bool {
	g := q.col.Pin()
	defer g.Unpin()

	head := epoch.Load(&g, &q.head)
	return epoch.Load(&g, &head.next) == nil
}

// Reset drains the queue, passing every remaining payload to dispose
// exactly once (oldest first), and recycles the nodes. dispose may be
// nil. The queue is left empty and ready for reuse.
//
// Reset requires exclusive ownership: no Enqueue, Dequeue or IsEmpty may
// run concurrently. It walks the chain unpinned via [epoch.TryConsume],
// which is only sound under that exclusivity. The sentinel's slot holds
// no payload and is not disposed.
func (q *Queue[T]) Reset(dispose func(T)) {
	sentinel := q.head.Load()
	n, ok := epoch.TryConsume(&sentinel.next)
	for ok {
		if dispose != nil {
			dispose(n.data)
		}
		var next *node[T]
		next, ok = epoch.TryConsume(&n.next)
		q.recycle(n)
		n = next
	}
	// tail may point anywhere in the consumed chain; exclusive
	// ownership makes the plain store safe.
	q.tail.Store(sentinel)
}

// recycle clears a node and returns it to the pool. Runs after the grace
// period for nodes retired from the chain, or immediately during an
// exclusive Reset. The link is dropped so the pool doesn't retain the
// successor chain; the slot is dropped so payloads don't outlive their
// delivery.
func (q *Queue[T]) recycle(n *node[T]) {
	var zero T
	n.data = zero
	n.next.Store(nil)
	q.pool.Put(n)
}

var _ FIFO[int] = (*Queue[int])(nil)
