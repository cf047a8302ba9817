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

// snode is one cell of the stack's chain. Unlike the queue there is no
// sentinel: every linked node carries a live payload, and an empty stack
// is a nil top.
type snode[T any] struct {
	next atomic.Pointer[snode[T]]
	data T
}

// Stack is an unbounded lock-free concurrent LIFO (Treiber stack): a
// singly-linked chain behind a single atomic top pointer, mutated
// exclusively by CAS. Push and Pop are lock-free, not wait-free.
//
// Popped nodes are retired through the same [epoch.Collector] machinery
// as [Queue]; the grace period prevents the classic Treiber ABA failure
// where a recycled top re-enters the stack between a Pop's read and its
// CAS.
type Stack[T any] struct {
	_    pad
	top  atomic.Pointer[snode[T]]
	_    pad
	col  *epoch.Collector
	pool sync.Pool
}

// NewStack creates an empty stack protected by the default collector.
func NewStack[T any]() *Stack[T] {
	return NewStackWith[T](epoch.Default())
}

// NewStackWith creates an empty stack protected by c.
func NewStackWith[T any](c *epoch.Collector) *Stack[T] {
	s := &Stack[T]{col: c}
	s.pool.New = func() any { return new(snode[T]) }
	return s
}

// Push adds an element to the top of the stack (non-blocking,
// lock-free). Always returns nil: the stack is unbounded.
func (s *Stack[T]) Push(elem *T) error {
	n := s.pool.Get().(*snode[T])
	n.data = *elem

	g := s.col.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		top := epoch.Load(&g, &s.top)
		n.next.Store(top)
		// Success is the release edge publishing the payload write.
		if s.top.CompareAndSwap(top, n) {
			return nil
		}
		sw.Once()
	}
}

// Pop removes and returns the most recently pushed element
// (non-blocking, lock-free). Returns (zero-value, ErrWouldBlock) iff the
// stack was observed empty at that instant.
func (s *Stack[T]) Pop() (T, error) {
	g := s.col.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		top := epoch.Load(&g, &s.top)
		if top == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		next := epoch.Load(&g, &top.next)
		if s.top.CompareAndSwap(top, next) {
			// The winner owns top outright: move the payload, retire
			// the node.
			data := top.data
			g.Retire(func() { s.recycle(top) })
			return data, nil
		}
		sw.Once()
	}
}

// PopWait removes and returns the most recently pushed element, spinning
// until one is available. Each attempt re-pins the collector. There is
// no timeout; callers needing bounded waiting must layer their own.
func (s *Stack[T]) PopWait() T {
	sw := spin.Wait{}
	for {
		if v, err := s.Pop(); err == nil {
			return v
		}
		sw.Once()
	}
}

// IsEmpty reports whether the stack was observed empty. Best-effort
// snapshot, stale under concurrent mutation.
func (s *Stack[T]) IsEmpty() bool {
	return s.top.Load() == nil
}

// Reset drains the stack, passing every remaining payload to dispose
// exactly once (newest first), and recycles the nodes. dispose may be
// nil. The stack is left empty and ready for reuse.
//
// Reset requires exclusive ownership: no Push or Pop may run
// concurrently. It walks the chain unpinned via [epoch.TryConsume].
func (s *Stack[T]) Reset(dispose func(T)) {
	n, ok := epoch.TryConsume(&s.top)
	for ok {
		if dispose != nil {
			dispose(n.data)
		}
		var next *snode[T]
		next, ok = epoch.TryConsume(&n.next)
		s.recycle(n)
		n = next
	}
}

// recycle clears a node and returns it to the pool. Runs after the grace
// period for popped nodes, or immediately during an exclusive Reset.
func (s *Stack[T]) recycle(n *snode[T]) {
	var zero T
	n.data = zero
	n.next.Store(nil)
	s.pool.Put(n)
}
