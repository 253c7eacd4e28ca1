// Package metrics holds deskbridge's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the counters shared across services. A nil *Set is valid and
// turns all recording into no-ops, so components can run uninstrumented in
// tests.
type Set struct {
	Ticks         prometheus.Counter
	TaskRuns      prometheus.Counter
	TaskPanics    prometheus.Counter
	EventsDropped prometheus.Counter
	Notifications prometheus.Counter
}

func New(reg prometheus.Registerer) *Set {
	s := &Set{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskbridge",
			Name:      "background_ticks_total",
			Help:      "Periodic tick events published.",
		}),
		TaskRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskbridge",
			Name:      "background_task_runs_total",
			Help:      "Scheduled task actions executed.",
		}),
		TaskPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskbridge",
			Name:      "background_task_panics_total",
			Help:      "Scheduled task actions that panicked.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskbridge",
			Name:      "events_dropped_total",
			Help:      "Events published while no sink was attached.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskbridge",
			Name:      "notifications_posted_total",
			Help:      "Desktop notifications posted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Ticks, s.TaskRuns, s.TaskPanics, s.EventsDropped, s.Notifications)
	}
	return s
}

func (s *Set) IncTicks() {
	if s != nil {
		s.Ticks.Inc()
	}
}

func (s *Set) IncTaskRuns() {
	if s != nil {
		s.TaskRuns.Inc()
	}
}

func (s *Set) IncTaskPanics() {
	if s != nil {
		s.TaskPanics.Inc()
	}
}

func (s *Set) IncEventsDropped() {
	if s != nil {
		s.EventsDropped.Inc()
	}
}

func (s *Set) IncNotifications() {
	if s != nil {
		s.Notifications.Inc()
	}
}
