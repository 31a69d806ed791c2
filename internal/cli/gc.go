package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete backups of fully-undone sessions",
	Long: `gc removes backup snapshots that can no longer be needed: only sessions
whose every change has been undone are eligible, and the newest sessions are
kept regardless. Backups of live changes are never deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")

		st, err := openState()
		if err != nil {
			return err
		}
		sessions, err := st.journal.Sessions()
		if err != nil {
			return err
		}
		entries, err := st.journal.Entries()
		if err != nil {
			return err
		}
		live := make(map[string]bool)
		for _, e := range entries {
			if !e.Undone {
				live[e.SessionID] = true
			}
		}

		w := cmd.OutOrStdout()
		removed := 0
		// Sessions are oldest first; protect the newest `keep`.
		cutoff := len(sessions) - keep
		for i, s := range sessions {
			if i >= cutoff {
				break
			}
			if live[s.ID] {
				continue
			}
			if err := st.backups.DeleteSession(s.ID); err != nil {
				return fmt.Errorf("delete backups for %s: %w", s.ID, err)
			}
			fmt.Fprintf(w, "removed backups for %s\n", s.ID)
			removed++
		}
		fmt.Fprintf(w, "gc: %d session backup dir(s) removed\n", removed)
		return nil
	},
}

func init() {
	gcCmd.Flags().Int("keep", 3, "Always keep backups of the N newest sessions")
}
