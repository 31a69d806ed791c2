package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/lucasnoah/repair/internal/engine"
)

var (
	renderPass   = color.New(color.FgGreen).SprintFunc()
	renderWarn   = color.New(color.FgYellow).SprintFunc()
	renderFail   = color.New(color.FgRed).SprintFunc()
	renderAccent = color.New(color.FgCyan).SprintFunc()
)

// renderReport prints the human-readable session outcome. Every skip,
// success, and failure shows up with its reason.
func renderReport(w io.Writer, r *engine.Report) {
	if r.DryRun {
		fmt.Fprintln(w, "[DRY-RUN] planned actions:")
	} else {
		fmt.Fprintf(w, "Session %s\n", r.SessionID)
	}

	for _, ch := range r.Changes {
		id := ch.ID
		if id == "" {
			id = "planned"
		}
		fmt.Fprintf(w, "  %s %s [%s] %s\n", renderPass("✓"), id, ch.Category, ch.Description)
		fmt.Fprintf(w, "      undo: %s\n", ch.Undo)
	}

	for _, s := range r.Skipped {
		switch s.Reason {
		case engine.SkipSatisfied:
			fmt.Fprintf(w, "  %s %s already satisfied\n", renderPass("·"), s.CheckID)
		case engine.SkipManual:
			// Reported below as a suggestion.
		case engine.SkipBlocked, engine.SkipBackupFailed:
			detail := s.Detail
			if detail == "" {
				detail = string(s.Reason)
			}
			fmt.Fprintf(w, "  %s %s skipped: %s\n", renderWarn("⚠"), s.CheckID, detail)
		default:
			fmt.Fprintf(w, "  %s %s skipped (%s)\n", renderWarn("·"), s.CheckID, s.Reason)
		}
	}

	for _, id := range r.Unmatched {
		fmt.Fprintf(w, "  %s %s: no fixer available\n", renderWarn("?"), id)
	}

	if len(r.ManualSuggestions) > 0 {
		fmt.Fprintln(w, "\nManual suggestions:")
		for _, s := range r.ManualSuggestions {
			fmt.Fprintf(w, "  %s %s\n", renderAccent("•"), s)
		}
	}

	if r.FailedFixer != "" {
		fmt.Fprintf(w, "\n%s fixer %s failed: %s\n", renderFail("✗"), r.FailedFixer, r.FailureDetail)
	}
	if r.Rollback != nil {
		for _, id := range r.Rollback.Reverted {
			fmt.Fprintf(w, "  %s rolled back %s\n", renderPass("↩"), id)
		}
		for _, f := range r.Rollback.Failed {
			fmt.Fprintf(w, "  %s could not roll back %s: %s\n", renderFail("✗"), f.ChangeID, f.Error)
		}
	}

	if r.DryRun {
		fmt.Fprintf(w, "\n[DRY-RUN] %d action(s) planned; nothing was changed\n", len(r.Changes))
	} else {
		fmt.Fprintf(w, "\nStatus: %s (%d change(s))\n", r.Status, len(r.Changes))
	}
}
