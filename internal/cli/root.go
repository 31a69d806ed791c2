package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

// ExitError carries a specific process exit code up to main. Exit code 1 is
// a fixer failure with completed rollback; 2 means the rollback itself hit
// errors and state may be inconsistent.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	return e.Msg
}

var rootCmd = &cobra.Command{
	Use:   "repair",
	Short: "repair — safe, reversible home-configuration repair",
	Long: `repair applies curated fixes for failing environment checks.

Every mutation is backed up, checksum-verified, and journaled with its own
undo instruction; a mid-run failure rolls back everything already applied.
State lives under ~/.repair/ (append-only journal, per-session backups).

The diagnostic layer feeds check verdicts on stdin or via --report:
  acfs-doctor --json | repair --fix`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		if !fix {
			return cmd.Help()
		}
		return runFix(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().Bool("fix", false, "Apply fixes for failing checks")
	rootCmd.Flags().Bool("dry-run", false, "Plan fixes without touching anything")
	rootCmd.Flags().Bool("yes", false, "Apply prompt-category fixes without asking")
	rootCmd.Flags().Bool("json", false, "Emit the session report as JSON")
	rootCmd.Flags().String("only", "", "Restrict to categories (comma-separated: auto,prompt,manual)")
	rootCmd.Flags().String("report", "-", "Diagnostic report file ('-' = stdin)")

	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the repair version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "repair version %s\n", version)
	},
}
