// Package maintenance runs cron-scheduled housekeeping: sweeping the
// secrets store and logging a periodic stats line.
package maintenance

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"deskbridge/internal/background"
	"deskbridge/internal/secrets"
	logx "deskbridge/pkg/logx"
)

type Config struct {
	// SweepSpec schedules the secrets-store sweep. Empty disables it.
	SweepSpec string
	// StatsSpec schedules the stats log line. Empty disables it.
	StatsSpec string
}

// Service owns the cron runner. Store may be nil when secrets storage is
// disabled; the sweep job is then skipped regardless of spec.
type Service struct {
	log   logx.Logger
	store secrets.Store
	bg    *background.Service

	parser cron.Parser

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
}

func New(cfg Config, store secrets.Store, bg *background.Service, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		store:  store,
		bg:     bg,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:    cfg,
	}
}

// Start builds the cron runner from the current config and starts it.
// Invalid specs are logged and skipped so one bad entry does not block the
// others. Idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = s.build(s.cfg)
	s.c.Start()
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Apply swaps in a new schedule. A stopped service just records the config
// for the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	if cfg == s.cfg && s.c != nil {
		s.mu.Unlock()
		return
	}
	s.cfg = cfg
	if s.c == nil {
		s.mu.Unlock()
		return
	}
	old := s.c
	s.c = s.build(cfg)
	s.c.Start()
	s.mu.Unlock()
	<-old.Stop().Done()
}

// Jobs reports the number of scheduled entries (0 while stopped).
func (s *Service) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return 0
	}
	return len(s.c.Entries())
}

func (s *Service) build(cfg Config) *cron.Cron {
	c := cron.New(cron.WithParser(s.parser))
	s.add(c, cfg.SweepSpec, "sweep", s.sweep)
	s.add(c, cfg.StatsSpec, "stats", s.stats)
	return c
}

func (s *Service) add(c *cron.Cron, spec, name string, job func()) {
	if spec == "" {
		return
	}
	if name == "sweep" && s.store == nil {
		s.log.Debug("sweep job skipped, secrets storage disabled")
		return
	}
	if _, err := c.AddFunc(spec, job); err != nil {
		s.log.Warn("invalid cron spec, job disabled",
			logx.String("job", name),
			logx.String("spec", spec),
			logx.Err(err),
		)
		return
	}
	s.log.Debug("maintenance job scheduled", logx.String("job", name), logx.String("spec", spec))
}

func (s *Service) sweep() {
	n, err := s.store.Sweep(context.Background())
	if err != nil {
		s.log.Warn("secrets sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("secrets sweep removed stale entries", logx.Int("removed", n))
	}
}

func (s *Service) stats() {
	fields := []logx.Field{}
	if s.bg != nil {
		fields = append(fields,
			logx.Bool("background_running", s.bg.Running()),
			logx.Int("tasks_pending", s.bg.Pending()),
			logx.Duration("tick_interval", s.bg.Interval()),
		)
	}
	s.log.Info("maintenance stats", fields...)
}
