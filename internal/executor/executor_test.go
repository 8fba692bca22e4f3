package executor

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestExecutorRunsInPostOrder(t *testing.T) {
	e := New(16)
	defer e.Stop()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		e.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of post order: %v", order)
		}
	}
}

func TestExecutorStopDrainsPendingTasks(t *testing.T) {
	e := New(16)

	var ran int64
	for i := 0; i < 5; i++ {
		e.Post(func() { atomic.AddInt64(&ran, 1) })
	}
	e.Stop()

	if got := atomic.LoadInt64(&ran); got != 5 {
		t.Fatalf("want 5 tasks ran, got %d", got)
	}
}

func TestExecutorStopIsIdempotent(t *testing.T) {
	e := New(1)
	e.Stop()
	e.Stop()
}

func TestPostAndReplyRunsReplyAfterTask(t *testing.T) {
	e := New(1)
	defer e.Stop()

	done := make(chan struct{})
	var taskRan bool
	e.PostAndReply(func() {
		taskRan = true
	}, func() {
		if !taskRan {
			t.Error("reply ran before task")
		}
		close(done)
	})
	<-done
}
