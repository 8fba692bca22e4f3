// internal/executor/executor.go
package executor

import "sync"

// Executor is a single serialized task runner: a dedicated goroutine
// draining a FIFO of closures in post order. spec.md §5 describes the
// file writer's owner thread this way ("a thread with a FIFO task
// queue"); this package gives that description a concrete type, which
// the observer uses as the file writer's owner goroutine.
//
// Grounded on the teacher's Manager.uploadLoop: a single consumer
// goroutine draining a buffered channel, with a sync.Once-guarded
// Stop that closes the channel and blocks until the goroutine has
// drained everything posted before the close — the same
// "BLOCK_SHUTDOWN" discipline spec.md §5 calls for.
type Executor struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New starts the executor's goroutine. queueLen bounds how many
// pending tasks can be posted before Post blocks; callers that must
// never block should size it generously. In this repo the observer
// posts from caller goroutines (OnEvent, StopObserving, Destroy), so a
// full queue blocks those callers until the executor catches up.
func New(queueLen int) *Executor {
	e := &Executor{
		tasks: make(chan func(), queueLen),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// Post enqueues task to run on the executor's goroutine, in order
// relative to every other Post call. Post is safe to call
// concurrently from any number of caller threads.
func (e *Executor) Post(task func()) {
	e.tasks <- task
}

// PostAndReply enqueues task, then invokes reply (on the executor's
// goroutine, immediately after task returns) once task has completed.
// Used by StopObserving's optional on_done callback.
func (e *Executor) PostAndReply(task func(), reply func()) {
	e.tasks <- func() {
		task()
		if reply != nil {
			reply()
		}
	}
}

// Stop closes the task queue and blocks until every task posted
// before the close has run. It is safe to call Stop more than once;
// only the first call has any effect.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.tasks)
	})
	<-e.done
}
