package background

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"deskbridge/internal/eventbus"
	"deskbridge/internal/observability/metrics"
	logx "deskbridge/pkg/logx"
)

// Service runs the periodic tick loop and the one-shot task loop.
//
// It is safe for concurrent use.
type Service struct {
	log logx.Logger
	bus eventbus.Bus // optional mirror; may be nil
	met *metrics.Set // may be nil

	bridge *Bridge
	reg    *registry

	interval     atomic.Int64  // nanoseconds
	intervalWake chan struct{} // wakes the tick loop after SetInterval

	// mu serializes Start/Stop and guards stopCh. Stop holds it across the
	// wait for loop exit, so Running() observed after Stop returns is final.
	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, met *metrics.Set) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:          log,
		bus:          bus,
		met:          met,
		bridge:       NewBridge(),
		reg:          newRegistry(),
		intervalWake: make(chan struct{}, 1),
	}
	s.interval.Store(int64(cfg.interval()))
	s.bridge.OnDrop(met.IncEventsDropped)
	return s
}

// Bridge exposes the event sink bridge so the host can attach/detach a
// listener independently of Start/Stop.
func (s *Service) Bridge() *Bridge { return s.bridge }

// Interval returns the current periodic tick cadence.
func (s *Service) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the tick cadence. The in-flight wait is recomputed,
// so a shorter interval takes effect immediately rather than after the
// current cycle. Non-positive values are ignored.
func (s *Service) SetInterval(d time.Duration) {
	if d <= 0 {
		s.log.Warn("ignoring non-positive interval", logx.Duration("interval", d))
		return
	}
	s.interval.Store(int64(d))
	select {
	case s.intervalWake <- struct{}{}:
	default:
	}
	s.log.Debug("interval changed", logx.Duration("interval", d))
}

// Schedule registers a one-shot task to run delay from now. An existing
// task with the same id is replaced. The action may be nil; the task result
// event is still published when it fires.
func (s *Service) Schedule(id string, delay time.Duration, action func()) {
	if delay < 0 {
		delay = 0
	}
	s.reg.schedule(id, time.Now().Add(delay), action)
	s.log.Debug("task scheduled", logx.String("task", id), logx.Duration("delay", delay))
}

// Cancel removes a pending task. Unknown ids are ignored. A task whose
// action has already begun executing is not interrupted.
func (s *Service) Cancel(id string) {
	s.reg.cancel(id)
	s.log.Debug("task cancelled", logx.String("task", id))
}

// Pending reports the number of tasks currently registered.
func (s *Service) Pending() int { return s.reg.pending() }

// Running reports whether the loops are active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// Start attaches sink and spawns the tick and task loops. Calling Start
// while running is a no-op (the sink is not replaced; use Bridge().Attach).
func (s *Service) Start(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	if sink != nil {
		s.bridge.Attach(sink)
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh

	s.wg.Add(2)
	go s.tickLoop(stopCh)
	go s.taskLoop(stopCh)
	s.log.Info("background service started", logx.Duration("interval", s.Interval()))
}

// Stop halts both loops, waits for them to exit, and discards pending
// tasks. No event is published and no action runs after Stop returns.
// Calling Stop while stopped is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	start := time.Now()
	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = nil
	s.reg.clear()
	s.log.Info("background service stopped", logx.Duration("took", time.Since(start)))
}

// tickLoop publishes a periodic event: once immediately on start, then every
// interval. The wait target is lastTick+interval, recomputed whenever the
// interval changes.
func (s *Service) tickLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	last := time.Now()
	s.publishTick(last)

	for {
		d := time.Until(last.Add(s.Interval()))
		if d <= 0 {
			now := time.Now()
			s.publishTick(now)
			last = now
			continue
		}
		timer := time.NewTimer(d)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-s.intervalWake:
			timer.Stop()
			// recompute the wait with the new cadence
		case <-timer.C:
			now := time.Now()
			s.publishTick(now)
			last = now
		}
	}
}

// taskLoop drains due tasks and otherwise sleeps until the earliest pending
// due time. Schedule/Cancel signal the registry wake channel so the loop
// re-evaluates immediately.
func (s *Service) taskLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		// Fast-exit check so a closed stopCh wins over due work.
		select {
		case <-stopCh:
			return
		default:
		}

		if t, ok := s.reg.popDue(time.Now()); ok {
			s.runTask(t)
			continue
		}

		due, ok := s.reg.earliest()
		if !ok {
			select {
			case <-stopCh:
				return
			case <-s.reg.wake:
			}
			continue
		}

		d := time.Until(due)
		if d <= 0 {
			continue
		}
		timer := time.NewTimer(d)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-s.reg.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Service) runTask(t scheduledTask) {
	s.invoke(t)
	s.met.IncTaskRuns()
	s.publish(Event{
		Name: EventTaskResult,
		Data: map[string]any{
			"taskId":    t.id,
			"timestamp": time.Now().UnixMilli(),
		},
	})
}

// invoke runs the action inside a fault boundary: one panicking action must
// not take down the task loop or suppress later ticks and tasks.
func (s *Service) invoke(t scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			s.met.IncTaskPanics()
			s.log.Error("panic in scheduled task",
				logx.String("task", t.id),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	if t.action != nil {
		t.action()
	}
}

func (s *Service) publishTick(now time.Time) {
	s.met.IncTicks()
	s.publish(Event{
		Name: EventBackground,
		Data: map[string]any{
			"type":      "periodic",
			"timestamp": now.UnixMilli(),
		},
	})
}

func (s *Service) publish(e Event) {
	s.bridge.Publish(e)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: e.Name, Data: e.Data})
	}
}
