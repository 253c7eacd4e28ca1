package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"deskbridge/internal/background"
	"deskbridge/internal/eventbus"
	"deskbridge/internal/notify"
	"deskbridge/internal/secrets"
	"deskbridge/internal/tray"
	logx "deskbridge/pkg/logx"
)

type fakePoster struct {
	mu     sync.Mutex
	posted []notify.Notification
}

func (p *fakePoster) Post(_ context.Context, n notify.Notification) error {
	p.mu.Lock()
	p.posted = append(p.posted, n)
	p.mu.Unlock()
	return nil
}

func (p *fakePoster) Dismiss(context.Context, string) error { return nil }
func (p *fakePoster) Close() error                          { return nil }

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	dir := t.TempDir()
	store, err := secrets.Open(secrets.Config{
		Driver:  "file",
		Path:    filepath.Join(dir, "secure_storage"),
		KeyFile: filepath.Join(dir, "secrets.key"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	bg := background.New(background.Config{Interval: time.Hour}, logx.Nop(), bus, nil)
	t.Cleanup(bg.Stop)

	return NewRouter(Deps{
		Background: bg,
		Secrets:    store,
		Notify:     notify.New(notify.Config{Enabled: true, RatePerSec: 100}, &fakePoster{}, logx.Nop(), nil),
		Tray:       tray.New(logx.Nop(), bus),
		Bus:        bus,
	})
}

func call(t *testing.T, r *Router, method, params string) any {
	t.Helper()
	res, err := r.Call(context.Background(), method, json.RawMessage(params))
	if err != nil {
		t.Fatalf("%s(%s): %v", method, params, err)
	}
	return res
}

func callErr(t *testing.T, r *Router, method, params string) error {
	t.Helper()
	_, err := r.Call(context.Background(), method, json.RawMessage(params))
	if err == nil {
		t.Fatalf("%s(%s): expected error", method, params)
	}
	return err
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)
	_, err := r.Call(context.Background(), "frobnicate", nil)
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("err = %v, want ErrUnknownMethod", err)
	}
}

func TestArgumentValidation(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)
	tests := []struct {
		method string
		params string
	}{
		{"configureBackgroundService", `{"intervalMs":0}`},
		{"configureBackgroundService", `{"intervalMs":-5}`},
		{"scheduleBackgroundTask", `{"taskId":"","delayMillis":100}`},
		{"scheduleBackgroundTask", `{"taskId":"t","delayMillis":-1}`},
		{"cancelBackgroundTask", `{"taskId":"  "}`},
		{"secureStore", `{"key":"","value":"v"}`},
		{"secureRetrieve", `{"key":""}`},
		{"showNotification", `{"title":""}`},
		{"cancelNotification", `{"id":""}`},
		{"showTrayIcon", `{"iconPath":""}`},
		{"setTrayMenuItems", `{"items":[{"id":"","label":"x"}]}`},
		{"checkPermission", `{"permission":""}`},
		{"scheduleBackgroundTask", `{"taskId":42}`},
	}
	for _, tt := range tests {
		err := callErr(t, r, tt.method, tt.params)
		if !errors.Is(err, ErrInvalidArgs) {
			t.Fatalf("%s(%s): err = %v, want ErrInvalidArgs", tt.method, tt.params, err)
		}
	}
}

func TestBackgroundLifecycle(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	call(t, r, "startBackgroundService", "")
	if !r.bg.Running() {
		t.Fatal("service not running after startBackgroundService")
	}
	call(t, r, "configureBackgroundService", `{"intervalMs":250}`)
	if got := r.bg.Interval(); got != 250*time.Millisecond {
		t.Fatalf("interval = %v", got)
	}

	call(t, r, "scheduleBackgroundTask", `{"taskId":"sync","delayMillis":50}`)
	if r.bg.Pending() != 1 {
		t.Fatalf("pending = %d", r.bg.Pending())
	}
	call(t, r, "cancelBackgroundTask", `{"taskId":"sync"}`)
	if r.bg.Pending() != 0 {
		t.Fatalf("pending after cancel = %d", r.bg.Pending())
	}

	call(t, r, "stopBackgroundService", "")
	if r.bg.Running() {
		t.Fatal("service still running after stopBackgroundService")
	}
}

func TestSecureStorageRoundtrip(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	call(t, r, "secureStore", `{"key":"token","value":"s3cret"}`)

	res := call(t, r, "secureRetrieve", `{"key":"token"}`).(map[string]any)
	if res["value"] != "s3cret" {
		t.Fatalf("retrieve = %v", res)
	}

	res = call(t, r, "secureContainsKey", `{"key":"token"}`).(map[string]any)
	if res["contains"] != true {
		t.Fatalf("contains = %v", res)
	}

	call(t, r, "secureDelete", `{"key":"token"}`)
	res = call(t, r, "secureRetrieve", `{"key":"token"}`).(map[string]any)
	if res["value"] != nil {
		t.Fatalf("retrieve after delete = %v", res)
	}

	call(t, r, "secureStore", `{"key":"a","value":"1"}`)
	call(t, r, "secureStore", `{"key":"b","value":"2"}`)
	call(t, r, "secureDeleteAll", "")
	res = call(t, r, "secureContainsKey", `{"key":"a"}`).(map[string]any)
	if res["contains"] != false {
		t.Fatalf("contains after deleteAll = %v", res)
	}
}

func TestSecretsDisabled(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	bg := background.New(background.Config{}, logx.Nop(), bus, nil)
	r := NewRouter(Deps{
		Background: bg,
		Notify:     notify.New(notify.Config{Enabled: true}, &fakePoster{}, logx.Nop(), nil),
		Tray:       tray.New(logx.Nop(), bus),
		Bus:        bus,
	})
	_, err := r.Call(context.Background(), "secureStore", json.RawMessage(`{"key":"k","value":"v"}`))
	if !errors.Is(err, secrets.ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotificationsAndTray(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	res := call(t, r, "showNotification", `{"title":"Update","body":"ready"}`).(map[string]any)
	id, _ := res["id"].(string)
	if id == "" {
		t.Fatalf("showNotification result = %v", res)
	}
	call(t, r, "cancelNotification", `{"id":"`+id+`"}`)
	call(t, r, "cancelAllNotifications", "")

	call(t, r, "showTrayIcon", `{"iconPath":"/tmp/i.png","tooltip":"hi"}`)
	if s := r.tray.State(); !s.Visible || s.Tooltip != "hi" {
		t.Fatalf("tray state = %+v", s)
	}
	call(t, r, "updateTrayTooltip", `{"tooltip":"busy"}`)
	call(t, r, "setTrayMenuItems", `{"items":[{"id":"open","label":"Open"},{"separator":true},{"id":"quit","label":"Quit"}]}`)
	if s := r.tray.State(); len(s.Menu) != 3 || s.Tooltip != "busy" {
		t.Fatalf("tray state = %+v", s)
	}
	call(t, r, "hideTrayIcon", "")
	if r.tray.State().Visible {
		t.Fatal("tray still visible")
	}
}

func TestPlatformQueries(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	res := call(t, r, "getPlatformVersion", "").(map[string]any)
	if v, _ := res["version"].(string); v == "" {
		t.Fatalf("version = %v", res)
	}
	res = call(t, r, "checkPermission", `{"permission":"notification"}`).(map[string]any)
	if res["granted"] != true {
		t.Fatalf("granted = %v", res)
	}
	res = call(t, r, "checkPermission", `{"permission":"camera"}`).(map[string]any)
	if res["granted"] != false {
		t.Fatalf("granted = %v", res)
	}
}

func TestEventSinkReceivesBackgroundEvents(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	var mu sync.Mutex
	var names []string
	r.SetEventSink(func(name string, data map[string]any) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
	})

	call(t, r, "startBackgroundService", "")
	call(t, r, "scheduleBackgroundTask", `{"taskId":"t1","delayMillis":0}`)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		var tick, result bool
		for _, n := range names {
			switch n {
			case background.EventBackground:
				tick = true
			case background.EventTaskResult:
				result = true
			}
		}
		mu.Unlock()
		if tick && result {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("missing events, got %v", names)
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.ClearEventSink()
}

func TestRunForwardsTrayEvents(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	got := make(chan string, 1)
	r.SetEventSink(func(name string, data map[string]any) {
		if name == tray.EventMenuClicked {
			id, _ := data["itemId"].(string)
			got <- id
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	call(t, r, "setTrayMenuItems", `{"items":[{"id":"open","label":"Open"}]}`)
	// Give the forwarding loop a moment to subscribe.
	time.Sleep(20 * time.Millisecond)
	if !r.tray.Select("open") {
		t.Fatal("Select(open) = false")
	}

	select {
	case id := <-got:
		if id != "open" {
			t.Fatalf("itemId = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("menu event never reached sink")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}
