package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "deskbridge/pkg/logx"
)

const blobExt = ".dat"

// fileStore keeps one sealed blob file per key under dir. The filename is
// hex(sha256(key)) so arbitrary key strings stay filesystem-safe.
type fileStore struct {
	log logx.Logger
	dir string
	bx  *box

	mu sync.Mutex
}

func openFile(dir string, bx *box, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir, bx: bx}, nil
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+blobExt)
}

func (s *fileStore) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	sealed, err := s.bx.seal(value)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(sealed)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Write-then-rename so a crashed write never leaves a torn blob.
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(enc), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, err
	}
	return s.bx.open(sealed)
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *fileStore) Contains(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *fileStore) DeleteAll(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+blobExt))
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *fileStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+blobExt))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(b)))
		if err == nil {
			if _, err = s.bx.open(sealed); err == nil {
				continue
			}
		}
		// Unreadable under the current key: drop it.
		if err := os.Remove(p); err == nil {
			removed++
			s.log.Warn("dropped unreadable secret blob", logx.String("file", filepath.Base(p)))
		}
	}
	return removed, nil
}

func (s *fileStore) Close() error { return nil }

func configDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "deskbridge")
	}
	return "./deskbridge-data"
}
