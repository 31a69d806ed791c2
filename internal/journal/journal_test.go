package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasnoah/repair/internal/fixer"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "journal.jsonl"))
}

func mkChange(id, session string) *Change {
	return &Change{
		ID:          id,
		SessionID:   session,
		Category:    fixer.CategoryAuto,
		Description: "test change " + id,
		Files:       []string{"/tmp/f"},
		Undo:        fixer.RunCommand("rm", "/tmp/f"),
		Timestamp:   time.Now().UTC(),
	}
}

func TestJournal_RecordAndList(t *testing.T) {
	j := testJournal(t)

	if err := j.StartSession("ses_1"); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(mkChange("chg_0001", "ses_1")); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(mkChange("chg_0002", "ses_1")); err != nil {
		t.Fatal(err)
	}
	if err := j.EndSession("ses_1", StatusCommitted); err != nil {
		t.Fatal(err)
	}

	entries, err := j.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Undone {
			t.Errorf("%s should be live", e.ID)
		}
	}
	if entries[0].Undo.Kind != fixer.UndoRunCommand {
		t.Errorf("undo spec lost on round trip: %+v", entries[0].Undo)
	}
}

func TestJournal_NextChangeID_AcrossSessions(t *testing.T) {
	j := testJournal(t)

	id, err := j.NextChangeID()
	if err != nil || id != "chg_0001" {
		t.Fatalf("first id = %s, %v", id, err)
	}

	if err := j.Record(mkChange("chg_0001", "ses_1")); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(mkChange("chg_0002", "ses_1")); err != nil {
		t.Fatal(err)
	}
	// A later session continues the numbering; IDs are never reused.
	id, err = j.NextChangeID()
	if err != nil || id != "chg_0003" {
		t.Fatalf("next id after two records = %s, %v", id, err)
	}
}

func TestJournal_MarkUndone(t *testing.T) {
	j := testJournal(t)
	if err := j.Record(mkChange("chg_0001", "ses_1")); err != nil {
		t.Fatal(err)
	}
	if err := j.MarkUndone("chg_0001"); err != nil {
		t.Fatal(err)
	}

	entry, err := j.Entry("chg_0001")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Undone {
		t.Error("entry should be marked undone")
	}
}

func TestJournal_EntryNotFound(t *testing.T) {
	j := testJournal(t)
	if _, err := j.Entry("chg_9999"); !errors.Is(err, ErrChangeNotFound) {
		t.Errorf("expected ErrChangeNotFound, got %v", err)
	}
}

func TestJournal_Sessions(t *testing.T) {
	j := testJournal(t)

	if err := j.StartSession("ses_1"); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(mkChange("chg_0001", "ses_1")); err != nil {
		t.Fatal(err)
	}
	if err := j.EndSession("ses_1", StatusRolledBack); err != nil {
		t.Fatal(err)
	}
	if err := j.StartSession("ses_2"); err != nil {
		t.Fatal(err)
	}

	sessions, err := j.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Status != StatusRolledBack || len(sessions[0].ChangeIDs) != 1 {
		t.Errorf("session 1 wrong: %+v", sessions[0])
	}
	// No end record yet: still in progress.
	if sessions[1].Status != StatusInProgress {
		t.Errorf("session 2 should be in-progress, got %s", sessions[1].Status)
	}
}

func TestJournal_LatestLiveSession(t *testing.T) {
	j := testJournal(t)

	latest, err := j.LatestLiveSession()
	if err != nil || latest != "" {
		t.Fatalf("empty journal latest = %q, %v", latest, err)
	}

	j.StartSession("ses_1")
	j.Record(mkChange("chg_0001", "ses_1"))
	j.EndSession("ses_1", StatusCommitted)
	j.StartSession("ses_2")
	j.Record(mkChange("chg_0002", "ses_2"))
	j.EndSession("ses_2", StatusCommitted)

	latest, err = j.LatestLiveSession()
	if err != nil || latest != "ses_2" {
		t.Fatalf("latest = %q, %v, want ses_2", latest, err)
	}

	// Undo ses_2 entirely; ses_1 becomes the latest live one.
	j.MarkUndone("chg_0002")
	latest, _ = j.LatestLiveSession()
	if latest != "ses_1" {
		t.Errorf("latest after undo = %q, want ses_1", latest)
	}
}

func TestJournal_MissingFileIsEmpty(t *testing.T) {
	j := testJournal(t)
	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("missing journal must read as empty: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
