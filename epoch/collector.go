// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// slotCount is the maximum number of simultaneously pinned guards.
	// Must be a power of 2.
	slotCount = 128

	// bagThreshold is the deferred-bag length at which Unpin attempts to
	// advance the global epoch.
	bagThreshold = 64
)

// deferred is a retired function tagged with the epoch current at
// retirement. It may run once the global epoch reaches epoch+2.
type deferred struct {
	epoch uint64
	fn    func()
}

// slot is one participation slot. state encodes the claim: bit 0 is the
// active flag, the remaining bits hold the epoch the owner observed when
// it pinned. Zero means the slot is free.
//
// bag is owned by whichever goroutine currently holds the claim; it is
// never touched without the claim, so it needs no synchronization of its
// own. A released slot may park leftover deferrals; the next claimant
// inherits and eventually collects them.
type slot struct {
	state atomix.Uint64
	_     [64 - 8]byte
	bag   []deferred
	_     [64 - 24]byte
}

// Collector tracks pinned guards and retired nodes for a family of
// lock-free structures. Structures sharing nodes must share a Collector;
// independent structures may use independent collectors to keep their
// grace periods from interfering.
//
// The zero value is not ready for use; call NewCollector.
type Collector struct {
	_      [64]byte
	global atomix.Uint64
	_      [64 - 8]byte
	hint   atomix.Uint64
	_      [64 - 8]byte
	slots  [slotCount]slot
}

// NewCollector creates a collector with no pinned guards and the epoch
// counter at zero.
func NewCollector() *Collector {
	return &Collector{}
}

var defaultCollector = NewCollector()

// Default returns the process-wide collector used by structures that are
// not given an explicit one.
func Default() *Collector {
	return defaultCollector
}

// Pin pins the default collector. Equivalent to Default().Pin().
func Pin() Guard {
	return defaultCollector.Pin()
}

// Pin marks the calling goroutine as potentially observing the current
// generation of nodes until the returned guard is unpinned. Pointers
// loaded through the guard stay dereferenceable for the guard's lifetime.
//
// Pin claims a participation slot; if all slots are claimed it spins
// until one frees, so guards must be short-lived.
func (c *Collector) Pin() Guard {
	start := c.hint.AddAcqRel(1)
	sw := spin.Wait{}
	for {
		for i := uint64(0); i < slotCount; i++ {
			s := &c.slots[(start+i)&(slotCount-1)]
			e := c.global.LoadAcquire()
			if !s.state.CompareAndSwapAcqRel(0, e<<1|1) {
				continue
			}
			// Republish until the observed epoch is stable. The full-
			// barrier Store orders the claim before the re-read of the
			// global epoch, so an advancing thread either sees this slot
			// active or this loop sees the new epoch.
			for {
				cur := c.global.Load()
				if cur == e {
					break
				}
				e = cur
				s.state.Store(e<<1 | 1)
			}
			return Guard{c: c, slot: s}
		}
		sw.Once()
	}
}

// tryAdvance advances the global epoch by one step if every claimed slot
// has published the current epoch. At most one step per call; a slot
// pinned at an older epoch vetoes the advance.
func (c *Collector) tryAdvance() {
	e := c.global.LoadAcquire()
	for i := range c.slots {
		s := c.slots[i].state.LoadAcquire()
		if s&1 == 1 && s>>1 != e {
			return
		}
	}
	c.global.CompareAndSwapAcqRel(e, e+1)
}

// collect runs every deferral whose grace period has elapsed and returns
// the remainder. Caller must hold the claim on the bag's slot.
func (c *Collector) collect(bag []deferred) []deferred {
	global := c.global.LoadAcquire()
	kept := bag[:0]
	for _, d := range bag {
		if d.epoch+2 <= global {
			d.fn()
			continue
		}
		kept = append(kept, d)
	}
	// Drop freed closures so the backing array doesn't retain them.
	clear(bag[len(kept):])
	return kept
}

// Flush makes a best-effort attempt to advance the epoch and run every
// deferral whose grace period has elapsed, including deferrals parked in
// released slots. Deferrals retired while another guard is still pinned
// at an older epoch remain pending.
//
// Flush is never required for correctness; it gives tests and long-idle
// callers a deterministic drain point.
func (c *Collector) Flush() {
	for range 2 {
		g := c.Pin()
		c.tryAdvance()
		g.Unpin()
	}
	for i := range c.slots {
		s := &c.slots[i]
		e := c.global.LoadAcquire()
		// Claim the slot so the bag can be touched; skip slots whose
		// owners are pinned, they collect on their own Unpin.
		if !s.state.CompareAndSwapAcqRel(0, e<<1|1) {
			continue
		}
		if len(s.bag) > 0 {
			s.bag = c.collect(s.bag)
		}
		s.state.StoreRelease(0)
	}
}
