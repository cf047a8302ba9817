// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfl

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The
// structure stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Producer[T any] interface {
	// Enqueue adds an element (non-blocking). The element is copied into
	// a freshly linked node. The unbounded structures in this package
	// always return nil; the error return keeps the signature shared
	// with bounded queues across the ecosystem.
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
//
// The element is returned by value (moved out of the node). The node's
// slot is cleared so referenced objects can be garbage collected.
type Consumer[T any] interface {
	// Dequeue removes and returns an element (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the structure is empty.
	Dequeue() (T, error)
}

// FIFO is the combined producer-consumer interface for an unbounded
// first-in-first-out queue.
//
// The interface intentionally excludes length because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
// IsEmpty is provided instead: emptiness falls out of a single pointer
// read. Track counts in application logic when needed.
type FIFO[T any] interface {
	Producer[T]
	Consumer[T]

	// IsEmpty reports whether the queue was observed empty. The snapshot
	// may be stale the instant it returns under concurrent mutation.
	IsEmpty() bool
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
