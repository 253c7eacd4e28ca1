package notify

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	logx "deskbridge/pkg/logx"
)

// NewPoster builds the configured backend: "dbus" (default) talks to the
// org.freedesktop.Notifications session service, "nop" swallows everything
// (headless hosts, tests).
func NewPoster(backend string, log logx.Logger) (Poster, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "dbus":
		return newDBusPoster(log)
	case "nop", "none":
		return NopPoster(), nil
	default:
		return nil, errors.New("unknown notification backend: " + backend)
	}
}

// NopPoster returns a backend that accepts and discards everything.
func NopPoster() Poster { return nopPoster{} }

type nopPoster struct{}

func (nopPoster) Post(context.Context, Notification) error { return nil }
func (nopPoster) Dismiss(context.Context, string) error    { return nil }
func (nopPoster) Close() error                             { return nil }

const (
	fdoNotifyDest = "org.freedesktop.Notifications"
	fdoNotifyPath = "/org/freedesktop/Notifications"
)

// dbusPoster presents notifications through the freedesktop notification
// service on the session bus.
type dbusPoster struct {
	log  logx.Logger
	conn *dbus.Conn

	// mu guards the mapping from our string ids to the server's uint32
	// ids, needed for replacement and dismissal.
	mu  sync.Mutex
	ids map[string]uint32
}

func newDBusPoster(log logx.Logger) (Poster, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &dbusPoster{log: log, conn: conn, ids: map[string]uint32{}}, nil
}

func (p *dbusPoster) Post(ctx context.Context, n Notification) error {
	p.mu.Lock()
	replaces := p.ids[n.ID] // 0 means "new notification"
	p.mu.Unlock()

	obj := p.conn.Object(fdoNotifyDest, dbus.ObjectPath(fdoNotifyPath))
	call := obj.CallWithContext(ctx, fdoNotifyDest+".Notify", 0,
		"deskbridge",              // app_name
		replaces,                  // replaces_id (0 = new)
		"",                        // app_icon
		n.Title,                   // summary
		n.Body,                    // body
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		int32(-1),                 // expiry: server default
	)
	var serverID uint32
	if err := call.Store(&serverID); err != nil {
		return err
	}

	p.mu.Lock()
	p.ids[n.ID] = serverID
	p.mu.Unlock()
	return nil
}

func (p *dbusPoster) Dismiss(ctx context.Context, id string) error {
	p.mu.Lock()
	serverID, ok := p.ids[id]
	delete(p.ids, id)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	obj := p.conn.Object(fdoNotifyDest, dbus.ObjectPath(fdoNotifyPath))
	return obj.CallWithContext(ctx, fdoNotifyDest+".CloseNotification", 0, serverID).Err
}

func (p *dbusPoster) Close() error {
	return p.conn.Close()
}
