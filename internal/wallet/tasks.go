package wallet

import (
	"context"
	"sync"
	"time"
)

// settleTasks holds at most one delayed task per order. Scheduling again for
// the same order cancels the pending one.
type settleTasks struct {
	mu     sync.Mutex
	tasks  map[string]*settleTask
	wg     sync.WaitGroup
	closed bool
}

type settleTask struct {
	cancel context.CancelFunc
}

func newSettleTasks() *settleTasks {
	return &settleTasks{tasks: map[string]*settleTask{}}
}

// schedule runs fn after delay unless the task is cancelled or replaced first.
// fn gets a context that keeps parent's values but not its cancellation.
func (r *settleTasks) schedule(parent context.Context, key string, delay time.Duration, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if prev, ok := r.tasks[key]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	t := &settleTask{cancel: cancel}
	r.tasks[key] = t

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		fn(ctx)

		r.mu.Lock()
		if r.tasks[key] == t {
			delete(r.tasks, key)
		}
		r.mu.Unlock()
	}()
	return true
}

func (r *settleTasks) cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[key]
	if !ok {
		return false
	}
	t.cancel()
	delete(r.tasks, key)
	return true
}

func (r *settleTasks) pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

// shutdown cancels every task and waits for running ones to return.
func (r *settleTasks) shutdown() {
	r.mu.Lock()
	r.closed = true
	for key, t := range r.tasks {
		t.cancel()
		delete(r.tasks, key)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
