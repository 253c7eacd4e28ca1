package secrets

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "deskbridge/pkg/logx"
)

func readAll(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

// writeGarbageBlob plants a blob file that base64-decodes but does not
// unseal under the store's key.
func writeGarbageBlob(t *testing.T, dir string) {
	t.Helper()
	name := strings.Repeat("ab", 32) + blobExt
	if err := os.WriteFile(filepath.Join(dir, name), []byte("bm90LXNlYWxlZC1kYXRh"), 0o600); err != nil {
		t.Fatalf("write garbage blob: %v", err)
	}
}

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Driver:  driver,
		KeyFile: filepath.Join(dir, "secrets.key"),
	}
	if driver == "file" {
		cfg.Path = filepath.Join(dir, "secure_storage")
	} else {
		cfg.Path = filepath.Join(dir, "secrets.db")
	}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	if st == nil {
		t.Fatalf("Open(%s) returned nil store", driver)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st := openTestStore(t, driver)
			ctx := context.Background()

			if err := st.Put(ctx, "api-token", []byte("hunter2")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := st.Get(ctx, "api-token")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, []byte("hunter2")) {
				t.Fatalf("Get = %q, want hunter2", got)
			}

			ok, err := st.Contains(ctx, "api-token")
			if err != nil || !ok {
				t.Fatalf("Contains = %v, %v, want true", ok, err)
			}

			// Overwrite replaces the value.
			if err := st.Put(ctx, "api-token", []byte("swordfish")); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, err = st.Get(ctx, "api-token")
			if err != nil || !bytes.Equal(got, []byte("swordfish")) {
				t.Fatalf("Get after overwrite = %q, %v", got, err)
			}

			if err := st.Delete(ctx, "api-token"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := st.Get(ctx, "api-token"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete: %v, want ErrNotFound", err)
			}
			// Deleting again is a no-op.
			if err := st.Delete(ctx, "api-token"); err != nil {
				t.Fatalf("Delete again: %v", err)
			}
		})
	}
}

func TestStoreDeleteAll(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st := openTestStore(t, driver)
			ctx := context.Background()

			for _, k := range []string{"a", "b", "c"} {
				if err := st.Put(ctx, k, []byte("v:"+k)); err != nil {
					t.Fatalf("Put %s: %v", k, err)
				}
			}
			if err := st.DeleteAll(ctx); err != nil {
				t.Fatalf("DeleteAll: %v", err)
			}
			for _, k := range []string{"a", "b", "c"} {
				if ok, _ := st.Contains(ctx, k); ok {
					t.Fatalf("key %s survived DeleteAll", k)
				}
			}
		})
	}
}

func TestStoreValuesAreSealedOnDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{
		Driver:  "file",
		Path:    filepath.Join(dir, "secure_storage"),
		KeyFile: filepath.Join(dir, "secrets.key"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	plain := []byte("super-secret-value")
	if err := st.Put(context.Background(), "k", plain); err != nil {
		t.Fatalf("Put: %v", err)
	}

	blobs, err := filepath.Glob(filepath.Join(dir, "secure_storage", "*.dat"))
	if err != nil || len(blobs) != 1 {
		t.Fatalf("blob files = %v (err %v), want exactly 1", blobs, err)
	}
	raw := readAll(t, blobs[0])
	if bytes.Contains(raw, plain) {
		t.Fatal("plaintext visible in stored blob")
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(none): %v", err)
	}
	if st != nil {
		t.Fatal("disabled storage returned a store")
	}
}

func TestKeyFileReuse(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := Config{
		Driver:  "file",
		Path:    filepath.Join(dir, "secure_storage"),
		KeyFile: filepath.Join(dir, "secrets.key"),
	}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = st.Close()

	// Re-open with the same key file: value still unseals.
	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, err := st2.Get(context.Background(), "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
}

func TestSweepDropsUnreadableBlobs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	storageDir := filepath.Join(dir, "secure_storage")
	st, err := Open(Config{
		Driver:  "file",
		Path:    storageDir,
		KeyFile: filepath.Join(dir, "secrets.key"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	if err := st.Put(ctx, "good", []byte("ok")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	writeGarbageBlob(t, storageDir)

	removed, err := st.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if got, err := st.Get(ctx, "good"); err != nil || string(got) != "ok" {
		t.Fatalf("good entry after sweep = %q, %v", got, err)
	}
}

func TestBoxTamperDetection(t *testing.T) {
	t.Parallel()
	key := make([]byte, keySize)
	bx, err := newBox(key)
	if err != nil {
		t.Fatalf("newBox: %v", err)
	}
	sealed, err := bx.seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := bx.open(sealed); err == nil {
		t.Fatal("tampered ciphertext opened without error")
	}
}
