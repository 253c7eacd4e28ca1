package background

import "time"

// Event names and payload keys mirror the method-channel surface the host
// application consumes.
const (
	EventBackground = "backgroundEvent"
	EventTaskResult = "backgroundTaskResult"
)

// DefaultInterval is the periodic tick cadence used until the host
// configures one.
const DefaultInterval = time.Minute

// Event is an immutable (name, payload) pair delivered at most once to the
// currently attached sink.
type Event struct {
	Name string
	Data map[string]any
}

// Sink receives events published by the service. Implementations must be
// safe to call from the service's background goroutines.
type Sink func(Event)

// Config controls the background service.
type Config struct {
	// Interval is the periodic tick cadence. Zero or negative means
	// DefaultInterval.
	Interval time.Duration
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return c.Interval
}
