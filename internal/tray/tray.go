// Package tray tracks system-tray state (icon, tooltip, menu) and reports
// menu selections as events. Rendering is delegated to an attached
// Renderer; without one the state is still tracked so a renderer attached
// later can catch up.
package tray

import (
	"sync"
	"time"

	"deskbridge/internal/eventbus"
	logx "deskbridge/pkg/logx"
)

// EventMenuClicked is published on the bus when a menu item is selected.
const EventMenuClicked = "trayMenuItemClicked"

// MenuItem is one entry of the tray context menu.
type MenuItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Separator bool   `json:"separator,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// State is the full tray state handed to a Renderer.
type State struct {
	Visible  bool
	IconPath string
	Tooltip  string
	Menu     []MenuItem
}

// Renderer is the platform collaborator that draws the tray icon.
type Renderer interface {
	Render(s State) error
}

// Manager holds tray state. It is safe for concurrent use.
type Manager struct {
	log logx.Logger
	bus eventbus.Bus

	mu       sync.Mutex
	state    State
	renderer Renderer
}

func New(log logx.Logger, bus eventbus.Bus) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{log: log, bus: bus}
}

// SetRenderer attaches (or with nil, detaches) the platform renderer and
// immediately replays the current state to it.
func (m *Manager) SetRenderer(r Renderer) {
	m.mu.Lock()
	m.renderer = r
	s := m.state
	m.mu.Unlock()
	if r != nil {
		m.render(r, s)
	}
}

func (m *Manager) Show(iconPath, tooltip string) {
	m.update(func(s *State) {
		s.Visible = true
		s.IconPath = iconPath
		s.Tooltip = tooltip
	})
}

func (m *Manager) Hide() {
	m.update(func(s *State) { s.Visible = false })
}

func (m *Manager) SetTooltip(tooltip string) {
	m.update(func(s *State) { s.Tooltip = tooltip })
}

func (m *Manager) SetMenu(items []MenuItem) {
	menu := make([]MenuItem, len(items))
	copy(menu, items)
	m.update(func(s *State) { s.Menu = menu })
}

// State returns a copy of the current tray state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Menu = append([]MenuItem(nil), m.state.Menu...)
	return s
}

// Select reports a menu selection coming back from the renderer. Unknown,
// disabled, and separator items are ignored.
func (m *Manager) Select(id string) bool {
	m.mu.Lock()
	var found *MenuItem
	for i := range m.state.Menu {
		if m.state.Menu[i].ID == id {
			found = &m.state.Menu[i]
			break
		}
	}
	ok := found != nil && !found.Disabled && !found.Separator
	m.mu.Unlock()

	if !ok {
		return false
	}
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{
			Type: EventMenuClicked,
			Time: time.Now(),
			Data: map[string]any{"itemId": id},
		})
	}
	m.log.Debug("tray menu item selected", logx.String("item", id))
	return true
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	r := m.renderer
	s := m.state
	m.mu.Unlock()
	if r != nil {
		m.render(r, s)
	}
}

func (m *Manager) render(r Renderer, s State) {
	if err := r.Render(s); err != nil {
		m.log.Warn("tray render failed", logx.Err(err))
	}
}
