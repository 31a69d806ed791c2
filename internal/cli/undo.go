package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/repair/internal/engine"
	"github.com/lucasnoah/repair/internal/journal"
)

var undoCmd = &cobra.Command{
	Use:   "undo [change-id | session-id]",
	Short: "List and revert journaled changes",
	Long: `undo operates on the persisted change journal, outside any live session.

  repair undo --list              list all recorded changes
  repair undo chg_0003            revert one change
  repair undo --dry-run chg_0003  show what reverting would do
  repair undo --all [session-id]  revert a whole session, newest change first`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		all, _ := cmd.Flags().GetBool("all")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st, err := openState()
		if err != nil {
			return err
		}

		switch {
		case list:
			return listChanges(cmd, st)
		case all:
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}
			return undoSession(cmd, st, sessionID, dryRun)
		case len(args) == 1:
			return undoOne(cmd, st, args[0], dryRun)
		}
		return cmd.Help()
	},
}

func init() {
	undoCmd.Flags().Bool("list", false, "List all recorded changes")
	undoCmd.Flags().Bool("all", false, "Undo every change of a session")
	undoCmd.Flags().Bool("dry-run", false, "Show the undo instruction without executing it")
}

func listChanges(cmd *cobra.Command, st *state) error {
	entries, err := st.journal.Entries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded.")
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-10s %-8s %-7s %-20s %s\n", "ID", "CATEGORY", "STATE", "TIMESTAMP", "DESCRIPTION")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))
	for _, e := range entries {
		state := "live"
		if e.Undone {
			state = "undone"
		}
		fmt.Fprintf(w, "%-10s %-8s %-7s %-20s %s\n",
			e.ID, e.Category, state, e.Timestamp.Format("2006-01-02 15:04:05"), e.Description)
	}
	return nil
}

func undoOne(cmd *cobra.Command, st *state, changeID string, dryRun bool) error {
	entry, err := st.journal.Entry(changeID)
	if err != nil {
		return err
	}
	if entry.Undone {
		return fmt.Errorf("%w: %s", journal.ErrAlreadyUndone, changeID)
	}

	w := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(w, "[DRY-RUN] undo of %s would: %s\n", changeID, entry.Undo.Describe())
		return nil
	}

	rb := &engine.Rollback{Backups: st.backups, Runner: st.runner, Journal: st.journal}
	if err := rb.ExecuteUndo(cmd.Context(), entry.Undo); err != nil {
		return fmt.Errorf("undo %s: %w", changeID, err)
	}
	if err := st.journal.MarkUndone(changeID); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s undid %s: %s\n", renderPass("↩"), changeID, entry.Description)
	return nil
}

// undoSession reverts a session's live changes in reverse apply order. With
// no session argument it targets the latest session that still has live
// changes.
func undoSession(cmd *cobra.Command, st *state, sessionID string, dryRun bool) error {
	w := cmd.OutOrStdout()

	if sessionID == "" {
		var err error
		sessionID, err = st.journal.LatestLiveSession()
		if err != nil {
			return err
		}
		if sessionID == "" {
			fmt.Fprintln(w, "Nothing to undo.")
			return nil
		}
	}

	entries, err := st.journal.SessionEntries(sessionID)
	if err != nil {
		return err
	}
	var live []journal.Change
	for _, e := range entries {
		if !e.Undone {
			live = append(live, e.Change)
		}
	}
	if len(live) == 0 {
		fmt.Fprintf(w, "Session %s has no live changes.\n", sessionID)
		return nil
	}

	if dryRun {
		fmt.Fprintf(w, "[DRY-RUN] undoing session %s would revert, newest first:\n", sessionID)
		for i := len(live) - 1; i >= 0; i-- {
			fmt.Fprintf(w, "  %s: %s\n", live[i].ID, live[i].Undo.Describe())
		}
		return nil
	}

	rb := &engine.Rollback{Backups: st.backups, Runner: st.runner, Journal: st.journal}
	report := rb.Unwind(cmd.Context(), live)
	for _, id := range report.Reverted {
		fmt.Fprintf(w, "%s undid %s\n", renderPass("↩"), id)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "%s could not undo %s: %s\n", renderFail("✗"), f.ChangeID, f.Error)
	}
	if !report.Clean() {
		cmd.SilenceUsage = true
		return fmt.Errorf("session %s: %d change(s) could not be undone", sessionID, len(report.Failed))
	}
	fmt.Fprintf(w, "Session %s fully undone.\n", sessionID)
	return nil
}
