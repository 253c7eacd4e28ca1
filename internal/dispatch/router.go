// Package dispatch maps the method/event surface the host application
// speaks onto deskbridge's components. A transport (whatever carries the
// wire calls) decodes a method name plus JSON params, hands them to Call,
// and registers an EventSink for the outbound stream.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"deskbridge/internal/background"
	"deskbridge/internal/eventbus"
	"deskbridge/internal/notify"
	"deskbridge/internal/secrets"
	"deskbridge/internal/tray"
	logx "deskbridge/pkg/logx"
)

var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrInvalidArgs   = errors.New("invalid arguments")
)

func invalidArgs(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgs, fmt.Sprintf(format, a...))
}

// EventSink receives the outbound event stream.
type EventSink func(name string, data map[string]any)

// Handler executes one method. Params arrive as raw JSON ([]byte(nil) for
// methods without arguments).
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Deps are the components the router fronts. Secrets may be nil when
// storage is disabled.
type Deps struct {
	Log        logx.Logger
	Background *background.Service
	Secrets    secrets.Store
	Notify     *notify.Manager
	Tray       *tray.Manager
	Bus        eventbus.Bus
}

type Router struct {
	log     logx.Logger
	bg      *background.Service
	secrets secrets.Store
	notif   *notify.Manager
	tray    *tray.Manager
	bus     eventbus.Bus

	methods map[string]Handler

	mu   sync.RWMutex
	sink EventSink
}

func NewRouter(d Deps) *Router {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	r := &Router{
		log:     d.Log,
		bg:      d.Background,
		secrets: d.Secrets,
		notif:   d.Notify,
		tray:    d.Tray,
		bus:     d.Bus,
	}
	r.methods = r.methodTable()
	return r
}

// Methods lists the registered method names (for handshakes/debugging).
func (r *Router) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

// Call executes a method by name.
func (r *Router) Call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	h, ok := r.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	res, err := h(ctx, params)
	if err != nil {
		r.log.Debug("method failed", logx.String("method", method), logx.Err(err))
	}
	return res, err
}

// SetEventSink attaches the host's event listener. Background events are
// forwarded from the service's bridge; a previous sink is superseded.
func (r *Router) SetEventSink(sink EventSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()

	r.bg.Bridge().Attach(func(e background.Event) {
		r.emit(e.Name, e.Data)
	})
}

// ClearEventSink detaches the listener; events are dropped until a new one
// is attached.
func (r *Router) ClearEventSink() {
	r.bg.Bridge().Detach()
	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()
}

// Run forwards tray menu events from the internal bus to the event sink
// until ctx is done. Background events take the bridge path instead, so
// nothing is delivered twice.
func (r *Router) Run(ctx context.Context) error {
	ch, unsub := r.bus.Subscribe(16, tray.EventMenuClicked)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if data, ok := e.Data.(map[string]any); ok {
				r.emit(e.Type, data)
			}
		}
	}
}

func (r *Router) emit(name string, data map[string]any) {
	r.mu.RLock()
	sink := r.sink
	r.mu.RUnlock()
	if sink != nil {
		sink(name, data)
	}
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, invalidArgs("%v", err)
	}
	return v, nil
}
