package background

import "sync"

// Bridge is the single-slot delivery channel between the service's loops
// and whichever external listener is currently attached.
//
// Attach replaces the current sink; Detach clears it. Publish delivers
// synchronously to the attached sink or drops the event when none is
// attached. All three are safe to call concurrently.
type Bridge struct {
	mu   sync.RWMutex
	sink Sink

	dropped func() // optional drop counter hook
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// OnDrop installs a hook invoked whenever a publish finds no sink attached.
func (b *Bridge) OnDrop(fn func()) {
	b.mu.Lock()
	b.dropped = fn
	b.mu.Unlock()
}

func (b *Bridge) Attach(sink Sink) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

func (b *Bridge) Detach() {
	b.mu.Lock()
	b.sink = nil
	b.mu.Unlock()
}

func (b *Bridge) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sink != nil
}

func (b *Bridge) Publish(e Event) {
	b.mu.RLock()
	sink := b.sink
	dropped := b.dropped
	b.mu.RUnlock()

	if sink == nil {
		if dropped != nil {
			dropped()
		}
		return
	}
	sink(e)
}
