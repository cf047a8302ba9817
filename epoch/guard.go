// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import "sync/atomic"

// Guard marks a goroutine as pinned to the collector. While pinned, any
// pointer loaded through the guard stays dereferenceable and any node it
// could observe is kept out of recycling.
//
// A Guard is single-use and not safe for concurrent use: pin, operate,
// unpin, all on one goroutine. Using a guard after Unpin panics.
type Guard struct {
	c    *Collector
	slot *slot
}

// Retire schedules free to run once no guard that overlapped this call
// can still dereference the retired node. free runs on an arbitrary
// goroutine during a later Unpin or Flush.
//
// Panics if the guard is not pinned: retiring without a pin would let the
// grace period start before the unlink is published.
func (g *Guard) Retire(free func()) {
	if g.slot == nil {
		panic("epoch: retire through unpinned guard")
	}
	e := g.c.global.LoadAcquire()
	g.slot.bag = append(g.slot.bag, deferred{epoch: e, fn: free})
}

// Unpin releases the guard. Expired deferrals in the guard's slot are run
// before the slot is released; when the bag has grown past a threshold an
// epoch advance is attempted first.
func (g *Guard) Unpin() {
	if g.slot == nil {
		panic("epoch: unpin of unpinned guard")
	}
	s := g.slot
	g.slot = nil
	if len(s.bag) >= bagThreshold {
		g.c.tryAdvance()
	}
	if len(s.bag) > 0 {
		s.bag = g.c.collect(s.bag)
	}
	s.state.StoreRelease(0)
}

// Load reads p under the guard's protection. The returned pointer is safe
// to dereference until the guard is unpinned, even if the node is
// concurrently unlinked and retired.
//
// Panics if the guard is not pinned; a dereference outside a pin is a
// use-after-free waiting to happen and must fail loudly.
func Load[T any](g *Guard, p *atomic.Pointer[T]) *T {
	if g.slot == nil {
		panic("epoch: load through unpinned guard")
	}
	return p.Load()
}

// TryConsume takes ownership of the node behind p, leaving nil. It
// reports false when p already holds nil.
//
// TryConsume bypasses the grace-period machinery entirely and is only
// sound under exclusive access to the structure, e.g. draining a queue
// for teardown when no concurrent operation can exist.
func TryConsume[T any](p *atomic.Pointer[T]) (*T, bool) {
	v := p.Swap(nil)
	if v == nil {
		return nil, false
	}
	return v, true
}
