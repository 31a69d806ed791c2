// Package fixer defines remediation procedures and the registry that maps
// diagnostic check IDs onto them.
package fixer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasnoah/repair/internal/check"
	"github.com/lucasnoah/repair/internal/execx"
)

// Category is a fixer's risk class. It decides whether a fixer runs
// unattended, needs approval, or is only ever suggested.
type Category int

const (
	// CategoryAuto fixers are safe to apply without asking.
	CategoryAuto Category = iota
	// CategoryPrompt fixers need explicit approval before applying.
	CategoryPrompt
	// CategoryManual fixers are never executed; they produce a suggestion.
	CategoryManual
)

var categoryNames = map[Category]string{
	CategoryAuto:   "auto",
	CategoryPrompt: "prompt",
	CategoryManual: "manual",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory parses a category name as used by --only.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return CategoryAuto, nil
	case "prompt":
		return CategoryPrompt, nil
	case "manual":
		return CategoryManual, nil
	}
	return 0, fmt.Errorf("unknown category %q (want auto, prompt, or manual)", s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// GuardResult is the three-way outcome of a fixer's idempotency guard.
type GuardResult int

const (
	// GuardSatisfied means the fix is already in place; skip silently.
	GuardSatisfied GuardResult = iota
	// GuardNeedsFix means the fixer should proceed.
	GuardNeedsFix
	// GuardBlocked means a precondition is missing; skip with a warning.
	GuardBlocked
)

func (g GuardResult) String() string {
	switch g {
	case GuardSatisfied:
		return "satisfied"
	case GuardNeedsFix:
		return "needs-fix"
	case GuardBlocked:
		return "blocked"
	}
	return fmt.Sprintf("guard(%d)", int(g))
}

// UndoKind tags an undo descriptor.
type UndoKind string

const (
	UndoRestoreBackup UndoKind = "restore_backup"
	UndoRunCommand    UndoKind = "run_command"
)

// UndoSpec describes how to reverse a change: either restore a named backup
// or run a recorded argv. Never a shell string.
type UndoSpec struct {
	Kind      UndoKind `json:"kind"`
	BackupRef string   `json:"backup_ref,omitempty"`
	Argv      []string `json:"argv,omitempty"`
}

// RestoreBackup returns an undo spec that restores the referenced backup.
// The ref is filled in by the controller once the backup exists.
func RestoreBackup(ref string) UndoSpec {
	return UndoSpec{Kind: UndoRestoreBackup, BackupRef: ref}
}

// RunCommand returns an undo spec that executes argv.
func RunCommand(argv ...string) UndoSpec {
	return UndoSpec{Kind: UndoRunCommand, Argv: argv}
}

// Describe renders the undo instruction for humans and dry-run output.
func (u UndoSpec) Describe() string {
	switch u.Kind {
	case UndoRestoreBackup:
		if u.BackupRef == "" {
			return "restore from backup"
		}
		return "restore from backup " + u.BackupRef
	case UndoRunCommand:
		return "run: " + strings.Join(u.Argv, " ")
	}
	return "none"
}

// Env is the environment a fixer inspects and mutates. Guards and planners
// receive it read-only; nothing in Env can write.
type Env struct {
	Home        string                       // user home directory
	Shell       string                       // $SHELL of the invoking user
	RCFile      string                       // zsh rc file, typically ~/.zshrc
	ConfigDir   string                       // tool config dir, typically ~/.config/acfs
	TemplateDir string                       // stock config templates shipped with the tool
	PluginDir   string                       // zsh plugin checkouts, typically ~/.zsh/plugins
	LookPath    func(string) (string, error) // binary lookup, exec.LookPath in production
}

// Action is a fixer's computed plan for one check: what it will touch, which
// existing files need a backup first, and how to undo it. Planning never
// mutates the filesystem, so a dry run can emit the identical plan.
type Action struct {
	Description string
	// Files lists every path the apply step will create or modify.
	Files []string
	// MutateExisting lists the subset of Files that already exist and must
	// be backed up before the mutation.
	MutateExisting []string
	Undo           UndoSpec
	Destructive    bool
}

// Fixer is one registered remediation. Fixers are immutable and built at
// startup; Guard and Plan must be pure.
type Fixer struct {
	ID       string
	Pattern  string // exact check ID or trailing-glob like "plugin.*"
	Category Category

	// Guard reports whether the fix is still needed. Required.
	Guard func(env Env, c check.Check) (GuardResult, error)
	// Plan computes the action without touching the filesystem. Required
	// except for Manual fixers.
	Plan func(env Env, c check.Check) (*Action, error)
	// Apply performs the mutation. Required except for Manual fixers.
	Apply func(ctx context.Context, env Env, runner execx.Runner, c check.Check) error
	// Suggest renders the manual remediation hint. Manual fixers only.
	Suggest func(env Env, c check.Check) string
}
