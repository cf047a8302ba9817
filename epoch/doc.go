// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package epoch provides epoch-based memory reclamation for lock-free
// data structures.
//
// Lock-free structures unlink nodes while other goroutines may still hold
// raw references to them. The garbage collector alone keeps such nodes
// alive, but structures that recycle nodes through a pool reintroduce the
// ABA hazard: a recycled node re-entering the structure at its old address
// can make a stale compare-and-swap succeed incorrectly. Epoch-based
// reclamation closes that window by delaying recycling until no operation
// that could still observe the node remains in flight.
//
// # Usage
//
// Every operation on a protected structure is bracketed by a pin:
//
//	g := collector.Pin()
//	defer g.Unpin()
//
//	n := epoch.Load(&g, &q.head)  // safe to dereference while pinned
//	...
//	g.Retire(func() { recycle(n) })  // runs after the grace period
//
// A retired function is guaranteed not to run while any guard that
// overlapped the retirement is still pinned.
//
// # Scheme
//
// The collector keeps a global epoch counter and a fixed set of
// cache-padded participation slots. Pin claims a free slot and publishes
// the epoch it observed; Unpin releases the slot. The global epoch only
// advances when every claimed slot has published the current epoch, and a
// retired function only runs once the global epoch is two steps past the
// epoch recorded at retirement. Together these guarantee that every guard
// which could have read a pointer to the retired node has been unpinned
// before the function runs.
//
// Pinning claims one of a fixed number of slots; when more goroutines pin
// simultaneously than there are slots, the surplus spin until a slot
// frees. Pins are expected to be short: bracket a single operation, not a
// long computation.
//
// # Exclusive teardown
//
// TryConsume transfers ownership out of an atomic link without any pin.
// It is only sound when the caller has exclusive access to the whole
// structure, e.g. when draining it for teardown.
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering and [code.hybscloud.com/spin] for CPU
// pause instructions.
package epoch
