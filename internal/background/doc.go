// Package background implements the periodic execution engine and the
// delayed one-shot task scheduler behind deskbridge's method surface.
//
// # Overview
//
// A running Service owns exactly two goroutines:
//
//   - the tick loop publishes a "backgroundEvent" at a configurable cadence
//     (the interval can be changed at any time and applies to the wait in
//     flight);
//   - the task loop sleeps until the earliest pending task becomes due,
//     pops it from the registry, runs its action outside the registry lock,
//     and publishes a "backgroundTaskResult".
//
// Tasks are keyed by id; scheduling an id that is already pending replaces
// it. Cancelling an unknown id is a no-op. Actions run sequentially on the
// task loop's goroutine inside a panic fault boundary, so one failing
// action cannot take the loop down. A slow action delays later tasks; that
// is an accepted trade-off, actions are expected to be short.
//
// # Lifecycle
//
// Start and Stop are idempotent. Stop is synchronous: it wakes both loops,
// waits for them to exit, and discards pending tasks. After Stop returns no
// event is published and no action runs. Schedule/Cancel may be called in
// any state; tasks registered while stopped stay pending until the next
// Start (or are discarded by Stop).
//
// # Events
//
// Events go to the single attached sink (see Bridge). When no sink is
// attached they are dropped, not queued. Events are also mirrored onto the
// internal event bus so in-process consumers can observe them without
// occupying the sink slot.
package background
