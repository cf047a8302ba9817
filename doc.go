// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfl provides unbounded lock-free linked structures.
//
// The package offers two structures built on the same machinery:
//
//   - Queue: Michael & Scott multi-producer multi-consumer FIFO
//   - Stack: Treiber multi-producer multi-consumer LIFO
//
// Both are singly-linked chains of heap nodes mutated exclusively through
// compare-and-swap, protected by the epoch-based reclamation collector in
// the [code.hybscloud.com/lfl/epoch] subpackage. Unbounded means Enqueue
// and Push always succeed; there is no capacity, no backpressure and no
// ErrWouldBlock on the producer side. For bounded queues with
// backpressure, use code.hybscloud.com/lfq instead.
//
// # Quick Start
//
//	q := lfl.NewQueue[Event]()
//
//	// Enqueue (always succeeds)
//	ev := Event{ID: 1}
//	q.Enqueue(&ev)
//
//	// Dequeue (non-blocking)
//	ev, err := q.Dequeue()
//	if lfl.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
//	// Dequeue (spin until available)
//	ev = q.DequeueWait()
//
// # Common Patterns
//
// Fan-in/fan-out worker handoff (MPMC):
//
//	q := lfl.NewQueue[Job]()
//
//	// Workers
//	for range numWorkers {
//	    go func() {
//	        backoff := iox.Backoff{}
//	        for {
//	            job, err := q.Dequeue()
//	            if err != nil {
//	                backoff.Wait()
//	                continue
//	            }
//	            backoff.Reset()
//	            job.Run()
//	        }
//	    }()
//	}
//
//	// Submit jobs from anywhere; never blocks, never fails
//	func Submit(j Job) {
//	    q.Enqueue(&j)
//	}
//
// Free-list of large scratch objects (LIFO keeps hot objects hot):
//
//	free := lfl.NewStack[*Buffer]()
//
//	func Get() *Buffer {
//	    if b, err := free.Pop(); err == nil {
//	        return b
//	    }
//	    return NewBuffer()
//	}
//
//	func Put(b *Buffer) {
//	    free.Push(&b)
//	}
//
// # Ordering Guarantees
//
// Elements enqueued by one goroutine are dequeued in the order that
// goroutine enqueued them. No order is defined between elements from
// different producers beyond exactly-once delivery: every enqueued
// element is returned by exactly one Dequeue, none are duplicated or
// dropped. IsEmpty is a snapshot and may be stale the instant it returns.
//
// # Progress Guarantees
//
// All operations are lock-free: an individual call may retry its CAS loop
// under contention, but some call always completes in a bounded number of
// steps and no mutual-exclusion lock is ever taken. DequeueWait and
// PopWait spin without bound when the structure stays empty; callers
// needing bounded waiting must layer their own timeout or cancellation.
//
// # Memory Reclamation
//
// Nodes unlinked from a chain may still be referenced by concurrent
// operations that read a pointer just before the unlink. Each structure
// retires unlinked nodes through an [epoch.Collector]; a retired node is
// recycled into the structure's pool only after every operation that
// could still observe it has finished. Recycling without that grace
// period would reintroduce the ABA problem: a node re-entering the chain
// at its old address makes a stalled compare-and-swap succeed against
// mutated state.
//
// Structures default to a shared process-wide collector. Use
// NewQueueWith/NewStackWith with a dedicated [epoch.NewCollector] to
// isolate grace periods:
//
//	col := epoch.NewCollector()
//	q := lfl.NewQueueWith[Event](col)
//
// # Teardown
//
// Go has no destructors; abandoning a structure simply lets the garbage
// collector take the chain. When remaining payloads hold resources that
// must be released promptly, drain under exclusive ownership:
//
//	q.Reset(func(ev Event) { ev.Close() })
//
// Reset disposes every remaining payload exactly once and leaves the
// structure empty and reusable. It must not run concurrently with any
// other operation.
//
// # Length
//
// Length is intentionally not provided because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
// IsEmpty answers the one question a single pointer read can: whether the
// sentinel currently has a successor. Track counts in application logic
// when needed.
//
// # Race Detection
//
// The data path synchronizes through sync/atomic, which the race detector
// understands. The epoch collector additionally synchronizes through
// atomic orderings on separate variables that the detector cannot always
// attribute, so heavy stress tests are skipped under the race detector
// via [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering (in the epoch collector), and
// [code.hybscloud.com/spin] for CPU pause instructions in retry loops.
// Node links use sync/atomic typed pointers.
package lfl
