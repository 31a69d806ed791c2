package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lucasnoah/repair/internal/check"
	"github.com/lucasnoah/repair/internal/engine"
	"github.com/lucasnoah/repair/internal/fixer"
)

// runFix is the `repair --fix` entry: parse the diagnostic report, run one
// session, render the result, and map the outcome onto the exit contract.
func runFix(cmd *cobra.Command) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	asJSON, _ := cmd.Flags().GetBool("json")
	only, _ := cmd.Flags().GetString("only")
	reportPath, _ := cmd.Flags().GetString("report")

	checks, err := readChecks(cmd, reportPath)
	if err != nil {
		return err
	}

	st, err := openState()
	if err != nil {
		return err
	}
	env, err := buildEnv(st.cfg)
	if err != nil {
		return err
	}
	reg, err := fixer.NewRegistry(fixer.Builtin()...)
	if err != nil {
		return err
	}

	opts := engine.Options{
		DryRun:     dryRun,
		ApproveAll: yes,
	}
	if only != "" {
		opts.Only, err = parseOnly(only)
		if err != nil {
			return err
		}
	}
	// Interactive approval needs a real terminal on stdin; piped input
	// (the usual case — the doctor feeds the report) defers prompts.
	if !yes && reportPath != "-" && term.IsTerminal(int(os.Stdin.Fd())) {
		opts.Approve = promptApprover(cmd)
	}

	ctrl := engine.New(reg, st.backups, st.journal, env, st.runner, st.cfg.LockPath())
	report, err := ctrl.Run(cmd.Context(), checks, opts)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		renderReport(cmd.OutOrStdout(), report)
	}

	if code := report.ExitCode(); code != 0 {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: code, Msg: fmt.Sprintf("session %s: %s", report.SessionID, report.Status)}
	}
	return nil
}

// readChecks loads the diagnostic report from a file or stdin.
func readChecks(cmd *cobra.Command, path string) ([]check.Check, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open report: %w", err)
		}
		defer f.Close()
		r = f
	}
	return check.ParseReport(r)
}

func parseOnly(s string) (map[fixer.Category]bool, error) {
	out := make(map[fixer.Category]bool)
	for _, part := range strings.Split(s, ",") {
		cat, err := fixer.ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out[cat] = true
	}
	return out, nil
}

// promptApprover asks about each prompt-category fix individually:
// yes / no / all remaining / quit.
func promptApprover(cmd *cobra.Command) func(f *fixer.Fixer, act *fixer.Action) bool {
	reader := bufio.NewReader(os.Stdin)
	applyAll := false
	quit := false
	w := cmd.OutOrStdout()

	return func(f *fixer.Fixer, act *fixer.Action) bool {
		if quit {
			return false
		}
		if applyAll {
			return true
		}
		fmt.Fprintf(w, "\n%s\n", act.Description)
		for _, file := range act.Files {
			fmt.Fprintf(w, "  touches: %s\n", file)
		}
		fmt.Fprintf(w, "  undo:    %s\n", act.Undo.Describe())
		if act.Destructive {
			fmt.Fprintf(w, "  %s\n", renderWarn("undo removes files"))
		}
		fmt.Fprint(w, "Apply this fix? [y/n/a/q]: ")

		response, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.TrimSpace(strings.ToLower(response)) {
		case "y", "yes":
			return true
		case "a", "all":
			applyAll = true
			return true
		case "q", "quit":
			quit = true
			return false
		default:
			return false
		}
	}
}
