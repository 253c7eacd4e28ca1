package secrets

import (
	"errors"
	"path/filepath"
	"strings"

	logx "deskbridge/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if driver == "" {
		driver = "file"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultPath(driver)
	}
	keyFile := strings.TrimSpace(cfg.KeyFile)
	if keyFile == "" {
		keyFile = filepath.Join(filepath.Dir(path), "secrets.key")
	}

	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	bx, err := newBox(key)
	if err != nil {
		return nil, err
	}

	switch driver {
	case "file":
		return openFile(path, bx, log)
	case "sqlite", "sqlite3":
		return openSQLite(path, bx, log)
	default:
		return nil, errors.New("unknown secrets driver: " + driver)
	}
}

func defaultPath(driver string) string {
	base := configDir()
	if driver == "file" {
		return filepath.Join(base, "secure_storage")
	}
	return filepath.Join(base, "secrets.db")
}
