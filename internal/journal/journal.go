// Package journal persists the append-only change log. Every applied fixer
// leaves one change record carrying its own undo instruction; undo and
// session transitions are appended as their own records, so no line is ever
// rewritten.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasnoah/repair/internal/fixer"
)

var (
	// ErrChangeNotFound is returned for an undo against an unknown change ID.
	ErrChangeNotFound = errors.New("change not found")
	// ErrAlreadyUndone is returned for an undo against an undone change.
	ErrAlreadyUndone = errors.New("change already undone")
)

// SessionStatus is the lifecycle state of a repair session.
type SessionStatus string

const (
	StatusInProgress           SessionStatus = "in-progress"
	StatusCommitted            SessionStatus = "committed"
	StatusRolledBack           SessionStatus = "rolled-back"
	StatusRolledBackWithErrors SessionStatus = "rolled-back-with-errors"
)

// Change is one applied fixer's journaled effect. Immutable once recorded.
type Change struct {
	ID          string         `json:"id"` // chg_NNNN, strictly increasing
	SessionID   string         `json:"session_id"`
	Category    fixer.Category `json:"category"`
	Description string         `json:"description"`
	Files       []string       `json:"files"`
	Undo        fixer.UndoSpec `json:"undo"`
	Destructive bool           `json:"destructive"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Entry is a change plus its derived undo state.
type Entry struct {
	Change
	Undone bool `json:"undone"`
}

// Session summarises one engine invocation as reconstructed from the log.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	ChangeIDs []string      `json:"change_ids"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
}

// record is one journal line.
type record struct {
	Kind      string        `json:"kind"` // change | undo | session_start | session_end
	Change    *Change       `json:"change,omitempty"`
	ChangeID  string        `json:"change_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Status    SessionStatus `json:"status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Journal is the append-only log at a fixed path.
type Journal struct {
	path string
}

// New returns a Journal backed by the file at path. The file is created on
// first append.
func New(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// StartSession appends a session-start record.
func (j *Journal) StartSession(sessionID string) error {
	return j.append(record{Kind: "session_start", SessionID: sessionID, Timestamp: time.Now().UTC()})
}

// EndSession appends a session-end record with the final status.
func (j *Journal) EndSession(sessionID string, status SessionStatus) error {
	return j.append(record{Kind: "session_end", SessionID: sessionID, Status: status, Timestamp: time.Now().UTC()})
}

// Record appends a change record. The change must already carry its ID.
func (j *Journal) Record(ch *Change) error {
	if ch.ID == "" || ch.SessionID == "" {
		return fmt.Errorf("record change: missing id or session id")
	}
	return j.append(record{Kind: "change", Change: ch, Timestamp: ch.Timestamp})
}

// MarkUndone appends an undo record for the change.
func (j *Journal) MarkUndone(changeID string) error {
	return j.append(record{Kind: "undo", ChangeID: changeID, Timestamp: time.Now().UTC()})
}

// NextChangeID returns the next chg_NNNN. IDs grow monotonically across the
// whole journal, so a change ID identifies exactly one change in any session.
func (j *Journal) NextChangeID() (string, error) {
	recs, err := j.read()
	if err != nil {
		return "", err
	}
	max := 0
	for _, r := range recs {
		if r.Kind != "change" || r.Change == nil {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(r.Change.ID, "chg_%04d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("chg_%04d", max+1), nil
}

// Entries returns every recorded change across all sessions, in record
// order, with undo state resolved.
func (j *Journal) Entries() ([]Entry, error) {
	recs, err := j.read()
	if err != nil {
		return nil, err
	}
	undone := make(map[string]bool)
	for _, r := range recs {
		if r.Kind == "undo" {
			undone[r.ChangeID] = true
		}
	}
	var out []Entry
	for _, r := range recs {
		if r.Kind != "change" || r.Change == nil {
			continue
		}
		out = append(out, Entry{Change: *r.Change, Undone: undone[r.Change.ID]})
	}
	return out, nil
}

// Entry returns one change by ID, or ErrChangeNotFound.
func (j *Journal) Entry(changeID string) (*Entry, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == changeID {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrChangeNotFound, changeID)
}

// SessionEntries returns a session's changes in apply order.
func (j *Journal) SessionEntries(sessionID string) ([]Entry, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Sessions reconstructs every session from the log, oldest first. A session
// with a start record but no end record is reported as in-progress.
func (j *Journal) Sessions() ([]Session, error) {
	recs, err := j.read()
	if err != nil {
		return nil, err
	}
	var order []string
	byID := make(map[string]*Session)
	for _, r := range recs {
		switch r.Kind {
		case "session_start":
			if _, ok := byID[r.SessionID]; !ok {
				order = append(order, r.SessionID)
				byID[r.SessionID] = &Session{ID: r.SessionID, Status: StatusInProgress, StartedAt: r.Timestamp}
			}
		case "session_end":
			if s, ok := byID[r.SessionID]; ok {
				s.Status = r.Status
				s.EndedAt = r.Timestamp
			}
		case "change":
			if r.Change == nil {
				continue
			}
			if s, ok := byID[r.Change.SessionID]; ok {
				s.ChangeIDs = append(s.ChangeIDs, r.Change.ID)
			}
		}
	}
	out := make([]Session, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// LatestLiveSession returns the most recent session that still has changes
// not yet undone, or "" when there is none.
func (j *Journal) LatestLiveSession() (string, error) {
	sessions, err := j.Sessions()
	if err != nil {
		return "", err
	}
	entries, err := j.Entries()
	if err != nil {
		return "", err
	}
	live := make(map[string]bool)
	for _, e := range entries {
		if !e.Undone {
			live[e.SessionID] = true
		}
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if live[sessions[i].ID] {
			return sessions[i].ID, nil
		}
	}
	return "", nil
}

// append writes one record as a JSON line, flushed to stable storage before
// returning so the log always reflects what actually happened.
func (j *Journal) append(rec record) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(j.path), err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append journal record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// read loads every journal record, tolerating a missing file.
func (j *Journal) read() ([]record, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var recs []record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		recs = append(recs, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return recs, nil
}
