package reconciler

import (
	"context"
	"sync"
	"time"
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks background polling tasks by payout ID.
// At most one task runs per payout.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*task
	root   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewRegistry creates a registry whose tasks all derive from one root
// context, cancelled by Shutdown.
func NewRegistry() *Registry {
	root, stop := context.WithCancel(context.Background())
	return &Registry{
		tasks: make(map[string]*task),
		root:  root,
		stop:  stop,
	}
}

// Start runs fn in its own goroutine with a context bounded by budget.
// It returns false if a task for id is already running or the registry
// has been shut down.
func (r *Registry) Start(id string, budget time.Duration, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.tasks[id]; ok {
		return false
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if budget > 0 {
		ctx, cancel = context.WithTimeout(r.root, budget)
	} else {
		ctx, cancel = context.WithCancel(r.root)
	}

	t := &task{cancel: cancel, done: make(chan struct{})}
	r.tasks[id] = t
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer close(t.done)
		defer r.remove(id, t)
		defer cancel()
		fn(ctx)
	}()
	return true
}

func (r *Registry) remove(id string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[id] == t {
		delete(r.tasks, id)
	}
}

// Running reports whether a task for id is in flight.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// Cancel stops the task for id. It returns false if none was running.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Wait blocks until the task for id has finished, or ctx is done.
// It returns nil immediately when no task is running.
func (r *Registry) Wait(ctx context.Context, id string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closed reports whether Shutdown has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len returns the number of running tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown cancels every task, refuses new ones, and waits for the
// running ones to return or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stop()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
