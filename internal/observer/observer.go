// internal/observer/observer.go
package observer

import (
	"log"
	"sync/atomic"

	"netlogd/internal/eventbus"
	"netlogd/internal/executor"
	"netlogd/internal/filewriter"
	"netlogd/internal/logentry"
	"netlogd/internal/metrics"
	"netlogd/internal/writequeue"

	json "github.com/goccy/go-json"
)

// flushThreshold is the implementation constant spec.md §4.1 calls out
// by example. Crossing it is an edge-triggered condition: a Flush task
// is posted if and only if a push lands the queue exactly on this
// value, never on every push past it.
const flushThreshold = 15

// Observer is the producer-facing front end described in spec.md §4.1.
// Every exported method may be called from any caller thread; all of
// Observer's own state is either immutable after construction or owned
// by the write queue, which does its own locking. The file writer
// itself is never touched off the file executor.
//
// Grounded on the original net::FileNetLogObserver: construction
// computes the chunking parameters once, builds the queue and file
// writer, and hands everything after that off to a dedicated executor.
type Observer struct {
	queue    *writequeue.Queue
	writer   *filewriter.Writer
	executor *executor.Executor
	metrics  *metrics.Metrics

	flushThreshold int32
	stopped        atomic.Bool
}

// Option overrides a default at construction time.
type Option func(*Observer)

// WithFlushThreshold overrides the default flush threshold. Mostly
// useful in tests, where pushing 15 events just to exercise a flush is
// needless ceremony.
func WithFlushThreshold(n int) Option {
	return func(o *Observer) { o.flushThreshold = int32(n) }
}

// New constructs an Observer per spec.md §4.1: max_chunk_bytes is
// derived from maxTotalSize/chunkCount (or left unbounded), the write
// queue is capped at 2×maxTotalSize (or left unbounded), and an
// Initialize(constants) task is posted to the file executor before
// New returns — construction never blocks on that task completing.
//
// maxTotalSize <= 0 selects unbounded mode; chunkCount <= 0 defaults
// to 10, matching spec.md's tunables table, except when maxTotalSize
// is itself unbounded, in which case chunkCount is ignored entirely.
func New(finalLogPath string, maxTotalSize int64, chunkCount int, constants any, m *metrics.Metrics, opts ...Option) *Observer {
	var maxChunkBytes int64
	var queueCap int64
	var ring int

	if maxTotalSize <= 0 {
		maxChunkBytes = filewriter.Unbounded
		queueCap = writequeue.Unbounded
		ring = 0
	} else {
		ring = chunkCount
		if ring <= 0 {
			ring = 10
		}
		// spec.md §9 open question (b): max_total_size < chunk_count
		// drives max_chunk_bytes to zero, so every event rotates a new
		// chunk. The source does not guard against it and neither does
		// this implementation — see DESIGN.md.
		maxChunkBytes = maxTotalSize / int64(ring)
		queueCap = 2 * maxTotalSize
	}

	w := filewriter.New(finalLogPath, maxChunkBytes, ring, m)
	q := writequeue.New(queueCap, func(n int) {
		if m != nil {
			atomic.AddInt64(&m.QueueDroppedEventsTotal, int64(n))
		}
	})
	exec := executor.New(64)

	o := &Observer{
		queue:          q,
		writer:         w,
		executor:       exec,
		metrics:        m,
		flushThreshold: flushThreshold,
	}

	for _, opt := range opts {
		opt(o)
	}

	exec.Post(func() { w.Initialize(constants) })
	return o
}

// StartObserving subscribes o to bus at the given capture mode.
// spec.md §4.1: idempotency is not required; subscribing twice is a
// caller error the bus is free to treat however it likes.
func (o *Observer) StartObserving(bus *eventbus.Bus, mode eventbus.CaptureMode) {
	bus.Subscribe(o, mode)
}

// StopObserving unsubscribes from bus synchronously — so no OnEvent
// call started afterward can race with the terminal flush — then
// posts a FlushThenStop task. If onDone is non-nil it runs on the file
// executor immediately after the stop task completes; otherwise the
// call is fire-and-forget from the caller's perspective.
func (o *Observer) StopObserving(bus *eventbus.Bus, polledData any, onDone func()) {
	bus.Unsubscribe(o)
	o.stopped.Store(true)

	task := func() { o.writer.FlushThenStop(o.queue, polledData) }
	if onDone != nil {
		o.executor.PostAndReply(task, onDone)
	} else {
		o.executor.Post(task)
	}
}

// OnEvent is the hot path (spec.md §4.1): encode, push, and — if and
// only if the push landed the queue exactly on the flush threshold —
// post a single Flush task. An entry that fails to encode is dropped
// (logged as a warning and counted, never reported to the caller);
// OnEvent is infallible from the caller's point of view.
func (o *Observer) OnEvent(entry logentry.Entry) {
	if o.metrics != nil {
		atomic.AddInt64(&o.metrics.EventsReceivedTotal, 1)
	}

	value, err := entry.ToValue()
	if err != nil {
		o.dropEncodeError(err)
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		o.dropEncodeError(err)
		return
	}

	n := o.queue.Push(string(data))
	if o.metrics != nil {
		atomic.StoreInt64(&o.metrics.QueueLengthCurrent, int64(n))
	}

	if n == int(o.flushThreshold) {
		if o.metrics != nil {
			atomic.AddInt64(&o.metrics.FlushTasksPostedTotal, 1)
		}
		o.executor.Post(func() { o.writer.Flush(o.queue) })
	}
}

func (o *Observer) dropEncodeError(err error) {
	if o.metrics != nil {
		atomic.AddInt64(&o.metrics.EventsEncodeErrorsTotal, 1)
	}
	log.Printf("[WARN] netlog entry failed to encode, dropping: %v", err)
}

// Destroy tears the observer down without a graceful Stop: it posts a
// delete-all task to the file executor, then blocks until the executor
// has drained and exited. spec.md §8 scenario 4 — constructing,
// pushing events, and dropping the observer without calling Stop —
// must leave no final file and no in-progress directory on disk.
//
// Destroy is idempotent with respect to a prior StopObserving: calling
// it afterward is a no-op beyond shutting the executor down, since
// StopObserving sets the stopped flag and Destroy then posts no
// DeleteAllFiles task, so the finished file stays on disk.
func (o *Observer) Destroy() {
	if !o.stopped.Load() {
		o.executor.Post(func() { o.writer.DeleteAllFiles() })
	}
	o.executor.Stop()
}

