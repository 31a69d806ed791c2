package engine

import (
	"time"

	"github.com/lucasnoah/repair/internal/journal"
)

// SkipReason classifies why a fixer did not run.
type SkipReason string

const (
	SkipSatisfied    SkipReason = "satisfied"
	SkipBlocked      SkipReason = "blocked"
	SkipDeferred     SkipReason = "deferred"
	SkipDeclined     SkipReason = "declined"
	SkipFiltered     SkipReason = "filtered"
	SkipManual       SkipReason = "manual"
	SkipBackupFailed SkipReason = "backup-failed"
)

// Skip records one fixer that was not applied, and why. Every skip is
// user-visible; nothing is silently dropped.
type Skip struct {
	CheckID string     `json:"check_id"`
	FixerID string     `json:"fixer_id,omitempty"`
	Reason  SkipReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// ChangeReport is one applied (or, in dry-run, planned) change.
type ChangeReport struct {
	ID          string    `json:"id,omitempty"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Files       []string  `json:"files"`
	Undo        string    `json:"undo"`
	BackupRef   string    `json:"backup_ref,omitempty"`
	Destructive bool      `json:"destructive,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Report is the full outcome of one engine run. It is the --json payload.
type Report struct {
	SessionID         string                `json:"session_id,omitempty"`
	Status            journal.SessionStatus `json:"status"`
	DryRun            bool                  `json:"dry_run,omitempty"`
	Changes           []ChangeReport        `json:"changes"`
	ManualSuggestions []string              `json:"manual_suggestions"`
	Skipped           []Skip                `json:"skipped,omitempty"`
	Unmatched         []string              `json:"unmatched,omitempty"`
	FailedFixer       string                `json:"failed_fixer,omitempty"`
	FailureDetail     string                `json:"failure_detail,omitempty"`
	Rollback          *RollbackReport       `json:"rollback,omitempty"`
}

// StatusDryRun marks a report produced without a session.
const StatusDryRun journal.SessionStatus = "dry-run"

// ExitCode maps the report onto the process exit contract: 0 success or
// clean no-op, 1 fixer failure with completed rollback, 2 rollback errors.
func (r *Report) ExitCode() int {
	switch r.Status {
	case journal.StatusRolledBackWithErrors:
		return 2
	case journal.StatusRolledBack:
		return 1
	default:
		return 0
	}
}
