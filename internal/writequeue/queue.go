// internal/writequeue/queue.go
package writequeue

import "sync"

// Unbounded is the cap sentinel selecting unbounded mode — mirrors
// spec.md §3's "unbounded sentinel" for both the queue and the file
// writer's per-chunk limit.
const Unbounded int64 = -1

// Queue is the only object shared between producer threads and the
// file executor (spec.md §5). It is a mutex-guarded FIFO of already-
// encoded event strings, byte-counted against a hard cap, with an
// oldest-drop overflow policy.
//
// Grounded on the original FileNetLogObserver::WriteQueue: a
// base::Lock-guarded std::queue<string> plus a running byte count.
// Go's sync.Mutex plays the same role; the queue itself is a plain
// slice used as a FIFO since nothing here needs random access.
type Queue struct {
	mu     sync.Mutex
	items  []string
	bytes  int64
	cap    int64
	dropCB func(n int)
}

// New creates a Queue with the given hard byte cap. Pass Unbounded
// for no cap. onDrop, if non-nil, is invoked (under no lock) whenever
// Push drops n events to bring the queue back under cap — the hook
// metrics uses to count QueueDroppedEventsTotal.
func New(capBytes int64, onDrop func(n int)) *Queue {
	return &Queue{cap: capBytes, dropCB: onDrop}
}

// Push appends record to the queue, then evicts from the front (in
// FIFO order) while the queue is over its byte cap and non-empty.
// Returns the queue's length after eviction — the value the observer
// compares against the flush threshold.
//
// A single record larger than the cap is not special-cased: it gets
// pushed, then immediately evicted by the same loop, leaving the
// queue empty, exactly as spec.md §3's invariant describes.
func (q *Queue) Push(record string) int {
	q.mu.Lock()
	q.items = append(q.items, record)
	q.bytes += int64(len(record))

	dropped := 0
	for q.cap != Unbounded && q.bytes > q.cap && len(q.items) > 0 {
		q.bytes -= int64(len(q.items[0]))
		q.items = q.items[1:]
		dropped++
	}
	n := len(q.items)
	q.mu.Unlock()

	if dropped > 0 && q.dropCB != nil {
		q.dropCB(dropped)
	}
	return n
}

// SwapInto hands the caller everything currently queued and resets
// the queue to empty, in O(1). The caller must pass a queue it
// considers empty going in — whatever was there is discarded from its
// point of view since out's contents will be blown away.
func (q *Queue) SwapInto(out *[]string) {
	q.mu.Lock()
	*out, q.items = q.items, nil
	q.bytes = 0
	q.mu.Unlock()
}

// Len reports the current queue length. Used by tests;
// not relied on for correctness anywhere (Push's return value is the
// one that matters for flush-threshold detection).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bytes reports the current byte count. Exists for the ≤2S invariant
// test in spec.md §8.
func (q *Queue) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}
