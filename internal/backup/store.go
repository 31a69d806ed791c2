// Package backup creates and verifies checksummed snapshots of files before
// the repair engine mutates them.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucasnoah/repair/internal/fsutil"
)

// ErrIntegrity is reported when a snapshot's content no longer matches its
// recorded digest. A restore that hits this must surface it, never proceed.
var ErrIntegrity = errors.New("backup integrity: snapshot digest mismatch")

// Backup is one file's pre-mutation snapshot.
type Backup struct {
	ID        string      `json:"id"` // bak_NNNN, session-scoped
	SessionID string      `json:"session_id"`
	Path      string      `json:"path"`     // absolute path of the backed-up file
	SHA256    string      `json:"sha256"`   // digest of the pre-image
	Snapshot  string      `json:"snapshot"` // absolute path of the snapshot copy
	Mode      os.FileMode `json:"mode"`     // permission bits of the pre-image
	CreatedAt time.Time   `json:"created_at"`
}

// Ref is the stable reference recorded in the journal: "<session>/<id>".
func (b *Backup) Ref() string {
	return b.SessionID + "/" + b.ID
}

// Store keeps snapshots under baseDir, one directory per session. Snapshots
// are removed only by explicit garbage collection, never implicitly.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

// Create snapshots the current content of path into the session's backup
// directory and returns the handle. The file must exist.
func (s *Store) Create(sessionID, path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	id, err := s.nextID(dir)
	if err != nil {
		return nil, err
	}

	b := &Backup{
		ID:        id,
		SessionID: sessionID,
		Path:      path,
		SHA256:    digest(data),
		Snapshot:  filepath.Join(dir, id+".data"),
		Mode:      info.Mode().Perm(),
		CreatedAt: time.Now().UTC(),
	}

	if err := fsutil.WriteAtomic(b.Snapshot, data, 0o600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := fsutil.WriteJSON(filepath.Join(dir, id+".json"), b); err != nil {
		return nil, fmt.Errorf("write snapshot metadata: %w", err)
	}
	return b, nil
}

// Verify recomputes the snapshot's digest and compares it to the recorded
// one. Used to detect snapshot corruption before trusting a rollback.
func (s *Store) Verify(b *Backup) error {
	data, err := os.ReadFile(b.Snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", b.Snapshot, err)
	}
	if digest(data) != b.SHA256 {
		return fmt.Errorf("%w: %s", ErrIntegrity, b.Ref())
	}
	return nil
}

// Restore overwrites the target path with the snapshot content. The snapshot
// is verified before the write and the restored file is re-verified after.
func (s *Store) Restore(b *Backup) error {
	if err := s.Verify(b); err != nil {
		return err
	}
	data, err := os.ReadFile(b.Snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", b.Snapshot, err)
	}
	mode := b.Mode
	if mode == 0 {
		// Metadata written before modes were recorded.
		mode = 0o644
	}
	if err := fsutil.WriteAtomic(b.Path, data, mode); err != nil {
		return fmt.Errorf("restore %s: %w", b.Path, err)
	}
	restored, err := os.ReadFile(b.Path)
	if err != nil {
		return fmt.Errorf("re-read restored %s: %w", b.Path, err)
	}
	if digest(restored) != b.SHA256 {
		return fmt.Errorf("%w: restored file %s", ErrIntegrity, b.Path)
	}
	return nil
}

// Load resolves a journal backup reference ("<session>/<id>") to its handle.
func (s *Store) Load(ref string) (*Backup, error) {
	sessionID, id, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("malformed backup ref %q", ref)
	}
	var b Backup
	path := filepath.Join(s.sessionDir(sessionID), id+".json")
	if err := fsutil.ReadJSON(path, &b); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup %s not found", ref)
		}
		return nil, err
	}
	return &b, nil
}

// Sessions lists the session IDs that still have backup directories.
func (s *Store) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSession removes every snapshot for a session. Explicit GC only.
func (s *Store) DeleteSession(sessionID string) error {
	return os.RemoveAll(s.sessionDir(sessionID))
}

// nextID returns the next bak_NNNN ID within a session directory.
func (s *Store) nextID(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}
	max := 0
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if !strings.HasPrefix(name, "bak_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(name, "bak_%04d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("bak_%04d", max+1), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
