package background

import (
	"sync"
	"time"
)

type scheduledTask struct {
	id     string
	due    time.Time
	action func()
}

// registry is the set of pending one-shot tasks shared between the
// foreground API and the task loop. It owns no goroutines; the wake channel
// lets the task loop re-evaluate its wait whenever the pending set changes.
//
// The lock is held only for map lookups/inserts/removes, never across an
// action invocation or an event publish.
type registry struct {
	mu    sync.Mutex
	tasks map[string]scheduledTask
	wake  chan struct{}
}

func newRegistry() *registry {
	return &registry{
		tasks: map[string]scheduledTask{},
		wake:  make(chan struct{}, 1),
	}
}

// schedule inserts or replaces the task for id and wakes the task loop: the
// new task may be due sooner than whatever the loop is currently waiting for.
func (r *registry) schedule(id string, due time.Time, action func()) {
	r.mu.Lock()
	r.tasks[id] = scheduledTask{id: id, due: due, action: action}
	r.mu.Unlock()
	r.signal()
}

// cancel removes the task for id. Cancelling an unknown or already-fired
// task is benign.
func (r *registry) cancel(id string) {
	r.mu.Lock()
	_, had := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if had {
		r.signal()
	}
}

// popDue removes and returns the most overdue task: earliest due time at or
// before now, ties broken by smallest id.
func (r *registry) popDue(now time.Time) (scheduledTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best scheduledTask
	found := false
	for _, t := range r.tasks {
		if t.due.After(now) {
			continue
		}
		if !found || t.due.Before(best.due) || (t.due.Equal(best.due) && t.id < best.id) {
			best = t
			found = true
		}
	}
	if found {
		delete(r.tasks, best.id)
	}
	return best, found
}

// earliest returns the minimum due time across pending tasks.
func (r *registry) earliest() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var min time.Time
	found := false
	for _, t := range r.tasks {
		if !found || t.due.Before(min) {
			min = t.due
			found = true
		}
	}
	return min, found
}

func (r *registry) clear() {
	r.mu.Lock()
	r.tasks = map[string]scheduledTask{}
	r.mu.Unlock()
}

func (r *registry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *registry) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
