// Package notify posts desktop notifications on behalf of the host
// application, with rate limiting and short-window dedup in front of a
// pluggable backend.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"deskbridge/internal/observability/metrics"
	logx "deskbridge/pkg/logx"
)

var (
	ErrDisabled    = errors.New("notifications disabled")
	ErrRateLimited = errors.New("notification rate limited")
)

// Notification is one desktop notification. ID identifies it for
// cancellation and replacement; an empty ID gets a generated one.
type Notification struct {
	ID    string
	Title string
	Body  string
}

// Poster is the platform backend that actually presents notifications.
type Poster interface {
	Post(ctx context.Context, n Notification) error
	Dismiss(ctx context.Context, id string) error
	Close() error
}

type Config struct {
	Enabled     bool
	RatePerSec  int
	DedupWindow time.Duration
}

// Manager fronts a Poster with policy. It is safe for concurrent use.
type Manager struct {
	log    logx.Logger
	met    *metrics.Set
	poster Poster

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	// dedup: title|body -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	// active notification ids, for CancelAll
	amu    sync.Mutex
	active map[string]struct{}
}

func New(cfg Config, poster Poster, log logx.Logger, met *metrics.Set) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		log:    log,
		met:    met,
		poster: poster,
		dedup:  map[string]time.Time{},
		active: map[string]struct{}{},
	}
	m.applyLocked(cfg)
	return m
}

func (m *Manager) Apply(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(cfg)
}

func (m *Manager) applyLocked(cfg Config) {
	m.cfg = cfg
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	m.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Enabled
}

// Show posts a notification and returns its id (generated when empty).
// Identical title/body pairs within the dedup window are suppressed; the
// suppressed call still succeeds and returns the id.
func (m *Manager) Show(ctx context.Context, n Notification) (string, error) {
	m.mu.Lock()
	cfg := m.cfg
	lim := m.limiter
	m.mu.Unlock()

	if !cfg.Enabled {
		return "", ErrDisabled
	}
	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}

	if cfg.DedupWindow > 0 && m.suppressed(n, cfg.DedupWindow) {
		m.log.Debug("notification deduped", logx.String("id", n.ID))
		return n.ID, nil
	}
	if !lim.Allow() {
		m.log.Warn("notification rate limited", logx.String("id", n.ID))
		return "", ErrRateLimited
	}

	if err := m.poster.Post(ctx, n); err != nil {
		return "", err
	}
	m.met.IncNotifications()
	m.amu.Lock()
	m.active[n.ID] = struct{}{}
	m.amu.Unlock()
	m.log.Debug("notification posted", logx.String("id", n.ID), logx.String("title", n.Title))
	return n.ID, nil
}

// Cancel dismisses a notification. Unknown ids are ignored.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.amu.Lock()
	_, known := m.active[id]
	delete(m.active, id)
	m.amu.Unlock()
	if !known {
		return nil
	}
	return m.poster.Dismiss(ctx, id)
}

// CancelAll dismisses every notification posted through this manager.
func (m *Manager) CancelAll(ctx context.Context) error {
	m.amu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.active = map[string]struct{}{}
	m.amu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.poster.Dismiss(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) Close() error { return m.poster.Close() }

// suppressed reports (and records) whether an identical notification was
// shown within the dedup window. Expired entries are pruned on the way.
func (m *Manager) suppressed(n Notification, window time.Duration) bool {
	key := n.Title + "\x00" + n.Body
	now := time.Now()

	m.dmu.Lock()
	defer m.dmu.Unlock()
	for k, until := range m.dedup {
		if now.After(until) {
			delete(m.dedup, k)
		}
	}
	if until, ok := m.dedup[key]; ok && now.Before(until) {
		return true
	}
	m.dedup[key] = now.Add(window)
	return false
}
