package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarise recorded repair sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		liveBySession := make(map[string]int)
		for _, e := range entries {
			if !e.Undone {
				liveBySession[e.SessionID]++
			}
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(sessions, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-42s %-24s %-8s %-6s %s\n", "SESSION", "STATUS", "CHANGES", "LIVE", "STARTED")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 100))
		for _, s := range sessions {
			fmt.Fprintf(w, "%-42s %-24s %-8d %-6d %s\n",
				s.ID, s.Status, len(s.ChangeIDs), liveBySession[s.ID],
				s.StartedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
}
