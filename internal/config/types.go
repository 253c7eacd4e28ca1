package config

// Config is the root deskbridge configuration. Durations are strings in Go
// duration syntax ("30s", "2m"); bare integers are read as milliseconds to
// match the wire methods. YAML and JSON configs read the same.
type Config struct {
	Logging       LoggingConfig       `json:"logging"`
	Background    BackgroundConfig    `json:"background"`
	Secrets       SecretsConfig       `json:"secrets"`
	Notifications NotificationsConfig `json:"notifications"`
	Tray          TrayConfig          `json:"tray"`
	Debug         DebugConfig         `json:"debug"`
	Maintenance   MaintenanceConfig   `json:"maintenance"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type BackgroundConfig struct {
	// Interval is the periodic tick cadence (default 1m).
	Interval string `json:"interval"`
}

type SecretsConfig struct {
	// Driver is "file" (default) or "sqlite".
	Driver string `json:"driver"`
	// Path is the storage directory (file driver) or database file (sqlite).
	Path string `json:"path"`
	// KeyFile holds the sealing key; created with a random key on first use.
	KeyFile string `json:"key_file"`
}

type NotificationsConfig struct {
	Enabled bool `json:"enabled"`
	// Backend is "dbus" (default) or "nop".
	Backend    string `json:"backend"`
	RatePerSec int    `json:"rate_per_sec"`
	// DedupWindow suppresses identical notifications within the window.
	DedupWindow string `json:"dedup_window"`
}

type TrayConfig struct {
	Tooltip string `json:"tooltip"`
}

type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Token   string `json:"token"`
	// AllowInsecure permits binding beyond loopback without a token.
	AllowInsecure bool `json:"allow_insecure"`
}

type MaintenanceConfig struct {
	// SweepSpec is a cron spec for the secrets-store sweep ("" disables).
	SweepSpec string `json:"sweep_spec"`
	// StatsSpec is a cron spec for the periodic stats log line ("" disables).
	StatsSpec string `json:"stats_spec"`
}

// Default returns a config suitable for running without a config file.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Background: BackgroundConfig{
			Interval: "1m",
		},
		Secrets: SecretsConfig{
			Driver: "file",
		},
		Notifications: NotificationsConfig{
			Enabled:    true,
			Backend:    "dbus",
			RatePerSec: 2,
		},
	}
}
