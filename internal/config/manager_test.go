package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.json", `{
		"logging": {"level": "debug", "console": true},
		"background": {"interval": "30s"}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Background.Interval != "30s" {
		t.Fatalf("interval = %q, want 30s", cfg.Background.Interval)
	}
	// Untouched sections keep defaults.
	if cfg.Secrets.Driver != "file" {
		t.Fatalf("secrets driver = %q, want file", cfg.Secrets.Driver)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.yaml", `
logging:
  level: warn
  console: false
notifications:
  enabled: true
  backend: nop
  rate_per_sec: 5
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Notifications.Backend != "nop" || cfg.Notifications.RatePerSec != 5 {
		t.Fatalf("notifications = %+v", cfg.Notifications)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.json", `{"loging": {"level": "info"}}`)

	m := NewManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.json", `{"logging":{"level":"info"}}{"extra":1}`)

	m := NewManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty", raw: "", want: 0},
		{name: "seconds", raw: "45s", want: 45 * time.Second},
		{name: "composite", raw: "2h30m", want: 2*time.Hour + 30*time.Minute},
		{name: "bare int is milliseconds", raw: "60000", want: time.Minute},
		{name: "negative", raw: "-5s", wantErr: true},
		{name: "negative int", raw: "-100", wantErr: true},
		{name: "garbage", raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("test.field", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("test.field", "", time.Minute)
	if err != nil || got != time.Minute {
		t.Fatalf("got %v err %v, want 1m nil", got, err)
	}
	got, err = ParseDurationOrDefault("test.field", "10s", time.Minute)
	if err != nil || got != 10*time.Second {
		t.Fatalf("got %v err %v, want 10s nil", got, err)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "config.json", `{}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	next := Default()
	next.Logging.Level = "debug"
	m.publish(next)

	select {
	case got := <-ch:
		if got.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", got.Logging.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
}
