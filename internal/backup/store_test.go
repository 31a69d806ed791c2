package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_CreateVerifyRestore(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	target := filepath.Join(dir, ".zshrc")
	original := []byte("export PATH=$HOME/bin:$PATH\n")
	if err := os.WriteFile(target, original, 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := store.Create("ses_test", target)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "bak_0001" {
		t.Errorf("first backup id = %s", b.ID)
	}
	if err := store.Verify(b); err != nil {
		t.Errorf("fresh snapshot must verify: %v", err)
	}

	// Mutate the target, then restore the pre-image.
	if err := os.WriteFile(target, []byte("clobbered\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(b); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restored, _ := os.ReadFile(target)
	if !bytes.Equal(restored, original) {
		t.Errorf("restore not byte-identical: %q", restored)
	}
}

func TestStore_RestorePreservesMode(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	target := filepath.Join(dir, "secret")
	if err := os.WriteFile(target, []byte("key material"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := store.Create("ses_x", target)
	if err != nil {
		t.Fatal(err)
	}
	if b.Mode != 0o600 {
		t.Errorf("recorded mode = %o, want 600", b.Mode)
	}

	// Clobber content and loosen permissions, then restore.
	if err := os.WriteFile(target, []byte("clobbered"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(target, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(b); err != nil {
		t.Fatalf("restore: %v", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("restored mode = %o, want 600", info.Mode().Perm())
	}
	data, _ := os.ReadFile(target)
	if string(data) != "key material" {
		t.Errorf("restored content = %q", data)
	}
}

func TestStore_SequentialIDs(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	for i, name := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		b, err := store.Create("ses_x", path)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"bak_0001", "bak_0002", "bak_0003"}[i]
		if b.ID != want {
			t.Errorf("backup %d id = %s, want %s", i, b.ID, want)
		}
	}
}

func TestStore_CorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	target := filepath.Join(dir, "file")
	if err := os.WriteFile(target, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := store.Create("ses_x", target)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the snapshot behind the store's back.
	if err := os.WriteFile(b.Snapshot, []byte("tampered"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := store.Verify(b); !errors.Is(err, ErrIntegrity) {
		t.Errorf("verify on corrupt snapshot = %v, want ErrIntegrity", err)
	}
	// Restore must refuse rather than write tampered content.
	if err := store.Restore(b); !errors.Is(err, ErrIntegrity) {
		t.Errorf("restore on corrupt snapshot = %v, want ErrIntegrity", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "precious" {
		t.Errorf("target must be untouched after refused restore, got %q", data)
	}
}

func TestStore_LoadByRef(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	target := filepath.Join(dir, "file")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := store.Create("ses_abc", target)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(b.Ref())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.SHA256 != b.SHA256 || loaded.Path != b.Path {
		t.Errorf("loaded backup differs: %+v vs %+v", loaded, b)
	}

	if _, err := store.Load("ses_abc/bak_9999"); err == nil {
		t.Error("expected error for unknown backup ref")
	}
	if _, err := store.Load("garbage"); err == nil {
		t.Error("expected error for malformed ref")
	}
}

func TestStore_CreateMissingFile(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Create("ses_x", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error backing up a missing file")
	}
}

func TestStore_DeleteSession(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backups"))

	target := filepath.Join(dir, "file")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("ses_gone", target); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.Sessions()
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions = %v, %v", sessions, err)
	}
	if err := store.DeleteSession("ses_gone"); err != nil {
		t.Fatal(err)
	}
	sessions, _ = store.Sessions()
	if len(sessions) != 0 {
		t.Errorf("session dir should be gone, got %v", sessions)
	}
}
