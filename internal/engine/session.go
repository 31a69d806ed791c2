// Package engine orchestrates repair sessions: guard evaluation, backups,
// fixer application, journaling, and rollback on failure.
package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/repair/internal/backup"
	"github.com/lucasnoah/repair/internal/check"
	"github.com/lucasnoah/repair/internal/execx"
	"github.com/lucasnoah/repair/internal/fixer"
	"github.com/lucasnoah/repair/internal/journal"
)

// Options configures one engine run.
type Options struct {
	// DryRun plans every action without touching the filesystem or journal.
	DryRun bool
	// ApproveAll applies Prompt-category fixers without asking (--yes).
	ApproveAll bool
	// Only restricts the run to the given categories; nil means all.
	Only map[fixer.Category]bool
	// Approve is the interactive approval callback for Prompt fixers. When
	// nil and ApproveAll is false, Prompt fixers are deferred.
	Approve func(f *fixer.Fixer, act *fixer.Action) bool
}

// Controller runs repair sessions. Construct with New; all collaborators
// are passed in explicitly.
type Controller struct {
	registry *fixer.Registry
	backups  *backup.Store
	journal  *journal.Journal
	env      fixer.Env
	runner   execx.Runner
	lockPath string
}

// New creates a Controller.
func New(reg *fixer.Registry, backups *backup.Store, j *journal.Journal, env fixer.Env, runner execx.Runner, lockPath string) *Controller {
	return &Controller{
		registry: reg,
		backups:  backups,
		journal:  j,
		env:      env,
		runner:   runner,
		lockPath: lockPath,
	}
}

// workItem is one failing check bound to its matched fixer.
type workItem struct {
	chk check.Check
	f   *fixer.Fixer
}

// Run executes one repair session over the diagnostic report. Fixers run
// strictly sequentially in dispatch order (category, then registry order);
// the first apply failure rolls back everything already recorded.
func (c *Controller) Run(ctx context.Context, checks []check.Check, opts Options) (*Report, error) {
	report := &Report{
		Status:            StatusDryRun,
		Changes:           []ChangeReport{},
		ManualSuggestions: []string{},
		DryRun:            opts.DryRun,
	}

	items := c.dispatchOrder(check.Failing(checks), report)

	if !opts.DryRun {
		release, err := acquireLock(c.lockPath)
		if err != nil {
			return nil, err
		}
		defer release()

		report.SessionID = "ses_" + uuid.NewString()
		report.Status = journal.StatusInProgress
		if err := c.journal.StartSession(report.SessionID); err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
	}

	var applied []journal.Change
	for _, item := range items {
		if opts.Only != nil && !opts.Only[item.f.Category] {
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipFiltered,
			})
			continue
		}

		// Guard first, before anything can mutate. A guard error is a
		// missing precondition, not a session failure.
		result, err := item.f.Guard(c.env, item.chk)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipBlocked, Detail: err.Error(),
			})
			continue
		}
		switch result {
		case fixer.GuardSatisfied:
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipSatisfied,
			})
			continue
		case fixer.GuardBlocked:
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipBlocked,
			})
			continue
		}

		if item.f.Category == fixer.CategoryManual {
			report.ManualSuggestions = append(report.ManualSuggestions, item.f.Suggest(c.env, item.chk))
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipManual,
			})
			continue
		}

		act, err := item.f.Plan(c.env, item.chk)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipBlocked, Detail: err.Error(),
			})
			continue
		}
		if act.Undo.Kind == fixer.UndoRestoreBackup && len(act.MutateExisting) != 1 {
			report.Skipped = append(report.Skipped, Skip{
				CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipBlocked,
				Detail: "restore-backup undo requires exactly one mutated file",
			})
			continue
		}

		if item.f.Category == fixer.CategoryPrompt {
			if skipped := c.resolveApproval(item, act, opts, report); skipped {
				continue
			}
		}

		if opts.DryRun {
			report.Changes = append(report.Changes, planReport(item.f, act))
			continue
		}

		// Back up every existing file the apply step will modify. A failed
		// snapshot skips the fixer; the mutation is never attempted.
		var backups []*backup.Backup
		backupFailed := false
		for _, path := range act.MutateExisting {
			b, err := c.backups.Create(report.SessionID, path)
			if err != nil {
				report.Skipped = append(report.Skipped, Skip{
					CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipBackupFailed, Detail: err.Error(),
				})
				backupFailed = true
				break
			}
			backups = append(backups, b)
		}
		if backupFailed {
			continue
		}
		if act.Undo.Kind == fixer.UndoRestoreBackup {
			act.Undo = fixer.RestoreBackup(backups[0].Ref())
		}

		if err := item.f.Apply(ctx, c.env, c.runner, item.chk); err != nil {
			return c.failSession(ctx, report, applied, item, act, backups, err)
		}

		ch, err := c.record(report.SessionID, item, act)
		if err != nil {
			// The mutation happened but could not be journaled; treat it
			// like an apply failure so nothing unrecorded is left standing.
			return c.failSession(ctx, report, applied, item, act, backups, err)
		}
		applied = append(applied, *ch)
		report.Changes = append(report.Changes, changeReport(ch))
	}

	if !opts.DryRun {
		report.Status = journal.StatusCommitted
		if err := c.journal.EndSession(report.SessionID, journal.StatusCommitted); err != nil {
			return nil, fmt.Errorf("end session: %w", err)
		}
	}
	return report, nil
}

// dispatchOrder matches failing checks against the registry, reports the
// unmatched ones, and orders the work: category first, then registry order.
func (c *Controller) dispatchOrder(failing []check.Check, report *Report) []workItem {
	var items []workItem
	seen := make(map[string]bool)
	for _, chk := range failing {
		f, ok := c.registry.Match(chk.CheckID)
		if !ok {
			report.Unmatched = append(report.Unmatched, chk.CheckID)
			continue
		}
		key := f.ID + "\x00" + chk.CheckID
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, workItem{chk: chk, f: f})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].f.Category != items[j].f.Category {
			return items[i].f.Category < items[j].f.Category
		}
		return c.registry.Index(items[i].f) < c.registry.Index(items[j].f)
	})
	return items
}

// resolveApproval decides whether a Prompt fixer may run. Returns true when
// the item was skipped (deferred or declined).
func (c *Controller) resolveApproval(item workItem, act *fixer.Action, opts Options, report *Report) bool {
	if opts.ApproveAll {
		return false
	}
	if opts.Approve == nil {
		report.Skipped = append(report.Skipped, Skip{
			CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipDeferred,
			Detail: "needs approval; re-run with --yes or interactively",
		})
		return true
	}
	if opts.DryRun {
		// An interactive real run would ask; the plan includes it.
		return false
	}
	if !opts.Approve(item.f, act) {
		report.Skipped = append(report.Skipped, Skip{
			CheckID: item.chk.CheckID, FixerID: item.f.ID, Reason: SkipDeclined,
		})
		return true
	}
	return false
}

// failSession rolls back everything recorded so far and finalises the
// session. The controller never continues past a failed fixer.
func (c *Controller) failSession(ctx context.Context, report *Report, applied []journal.Change, item workItem, act *fixer.Action, kBackups []*backup.Backup, applyErr error) (*Report, error) {
	report.FailedFixer = item.f.ID
	report.FailureDetail = fmt.Sprintf("%s: %v", item.chk.CheckID, applyErr)

	// Strict reverse order: the failed fixer's own effects come off first.
	// Its backups were taken mid-session, so they contain the earlier
	// fixers' mutations; restoring them after the unwind would re-apply
	// what the unwind just reverted.
	partialFailures := revertPartial(c, act, kBackups)

	rb := &Rollback{Backups: c.backups, Runner: c.runner, Journal: c.journal}
	report.Rollback = rb.Unwind(ctx, applied)
	report.Rollback.Failed = append(report.Rollback.Failed, partialFailures...)

	status := journal.StatusRolledBack
	if !report.Rollback.Clean() {
		status = journal.StatusRolledBackWithErrors
	}
	report.Status = status
	if err := c.journal.EndSession(report.SessionID, status); err != nil {
		return nil, fmt.Errorf("end session after rollback: %w", err)
	}
	return report, nil
}

// revertPartial undoes the failed fixer's own effects: its mutated files
// come back from their freshly-taken backups, and paths the plan would have
// created are removed if the partial apply left them behind.
func revertPartial(c *Controller, act *fixer.Action, kBackups []*backup.Backup) []RollbackFailure {
	var failures []RollbackFailure

	mutated := make(map[string]bool, len(act.MutateExisting))
	for _, b := range kBackups {
		mutated[b.Path] = true
		if err := c.backups.Restore(b); err != nil {
			failures = append(failures, RollbackFailure{
				ChangeID: "(unrecorded) " + b.Path,
				Error:    err.Error(),
			})
		}
	}
	for _, path := range act.Files {
		if mutated[path] {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue // never created
		}
		if err := os.RemoveAll(path); err != nil {
			failures = append(failures, RollbackFailure{
				ChangeID: "(unrecorded) " + path,
				Error:    err.Error(),
			})
		}
	}
	return failures
}

// record journals one applied change.
func (c *Controller) record(sessionID string, item workItem, act *fixer.Action) (*journal.Change, error) {
	id, err := c.journal.NextChangeID()
	if err != nil {
		return nil, fmt.Errorf("allocate change id: %w", err)
	}
	ch := &journal.Change{
		ID:          id,
		SessionID:   sessionID,
		Category:    item.f.Category,
		Description: act.Description,
		Files:       act.Files,
		Undo:        act.Undo,
		Destructive: act.Destructive,
		Timestamp:   time.Now().UTC(),
	}
	if err := c.journal.Record(ch); err != nil {
		return nil, fmt.Errorf("record change: %w", err)
	}
	return ch, nil
}

func changeReport(ch *journal.Change) ChangeReport {
	return ChangeReport{
		ID:          ch.ID,
		Category:    ch.Category.String(),
		Description: ch.Description,
		Files:       ch.Files,
		Undo:        ch.Undo.Describe(),
		BackupRef:   ch.Undo.BackupRef,
		Destructive: ch.Destructive,
		Timestamp:   ch.Timestamp,
	}
}

// planReport renders a dry-run plan entry: identical content to a real
// run's change, modulo IDs, backup refs, and timestamps.
func planReport(f *fixer.Fixer, act *fixer.Action) ChangeReport {
	return ChangeReport{
		Category:    f.Category.String(),
		Description: act.Description,
		Files:       act.Files,
		Undo:        act.Undo.Describe(),
		Destructive: act.Destructive,
	}
}
