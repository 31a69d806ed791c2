package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucasnoah/repair/internal/backup"
	"github.com/lucasnoah/repair/internal/execx"
	"github.com/lucasnoah/repair/internal/fixer"
	"github.com/lucasnoah/repair/internal/journal"
)

// RollbackFailure records one change that could not be reverted.
type RollbackFailure struct {
	ChangeID string `json:"change_id"`
	Error    string `json:"error"`
}

// RollbackReport is the outcome of unwinding a set of changes.
type RollbackReport struct {
	Reverted []string          `json:"reverted"`
	Failed   []RollbackFailure `json:"failed,omitempty"`
}

// Clean reports whether every change was reverted.
func (r *RollbackReport) Clean() bool {
	return len(r.Failed) == 0
}

// Rollback replays journaled changes in reverse, restoring backups or
// executing recorded undo commands.
type Rollback struct {
	Backups *backup.Store
	Runner  execx.Runner
	Journal *journal.Journal
}

// Unwind undoes the given changes, most recent first. Later changes may
// depend on earlier ones remaining in place until they themselves are
// undone. Individual failures are recorded and the unwind continues, so the
// caller sees exactly what state remains.
func (r *Rollback) Unwind(ctx context.Context, changes []journal.Change) *RollbackReport {
	report := &RollbackReport{}
	for i := len(changes) - 1; i >= 0; i-- {
		ch := changes[i]
		if err := r.ExecuteUndo(ctx, ch.Undo); err != nil {
			report.Failed = append(report.Failed, RollbackFailure{ChangeID: ch.ID, Error: err.Error()})
			continue
		}
		if err := r.Journal.MarkUndone(ch.ID); err != nil {
			report.Failed = append(report.Failed, RollbackFailure{ChangeID: ch.ID, Error: err.Error()})
			continue
		}
		report.Reverted = append(report.Reverted, ch.ID)
	}
	return report
}

// ExecuteUndo performs a single undo instruction.
func (r *Rollback) ExecuteUndo(ctx context.Context, u fixer.UndoSpec) error {
	switch u.Kind {
	case fixer.UndoRestoreBackup:
		b, err := r.Backups.Load(u.BackupRef)
		if err != nil {
			return err
		}
		return r.Backups.Restore(b)
	case fixer.UndoRunCommand:
		_, stderr, code, err := r.Runner.Run(ctx, "", u.Argv)
		if err != nil {
			return fmt.Errorf("undo command: %w", err)
		}
		if code != 0 {
			return fmt.Errorf("undo command %q exited %d: %s",
				strings.Join(u.Argv, " "), code, strings.TrimSpace(stderr))
		}
		return nil
	}
	return fmt.Errorf("unknown undo kind %q", u.Kind)
}
