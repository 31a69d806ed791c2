package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/repair/internal/check"
	"github.com/lucasnoah/repair/internal/execx"
	"github.com/lucasnoah/repair/internal/fsutil"
)

// Markers delimiting the managed PATH block in the rc file. The block is
// always prepended so user PATH edits lower down cannot shadow it.
const (
	pathBlockBegin = "# >>> acfs managed path >>>"
	pathBlockEnd   = "# <<< acfs managed path <<<"
)

const pathBlockBody = `export PATH="$HOME/.local/bin:$HOME/bin:$PATH"`

const themeLine = `ZSH_THEME="agnoster"`

// stockRCName is the stock zsh config installed by the config.missing fixer.
const stockRCName = "acfs.zshrc"

// pluginRepos maps plugin check suffixes to their upstream clone URLs.
var pluginRepos = map[string]string{
	"autosuggestions":     "https://github.com/zsh-users/zsh-autosuggestions.git",
	"syntax-highlighting": "https://github.com/zsh-users/zsh-syntax-highlighting.git",
	"completions":         "https://github.com/zsh-users/zsh-completions.git",
}

// Builtin returns the full fixer catalog in registration order.
func Builtin() []*Fixer {
	return []*Fixer{
		pathOrderingFixer(),
		configDirFixer(),
		configMissingFixer(),
		rcThemeFixer(),
		pluginCloneFixer(),
		defaultShellFixer(),
		missingToolFixer(),
	}
}

// pathOrderingFixer prepends the managed PATH block to the rc file so tool
// installs under ~/.local/bin win over system copies.
func pathOrderingFixer() *Fixer {
	return &Fixer{
		ID:       "path-ordering",
		Pattern:  "path.ordering",
		Category: CategoryAuto,
		Guard: func(env Env, _ check.Check) (GuardResult, error) {
			data, err := os.ReadFile(env.RCFile)
			if os.IsNotExist(err) {
				return GuardNeedsFix, nil
			}
			if err != nil {
				return GuardBlocked, fmt.Errorf("read %s: %w", env.RCFile, err)
			}
			if strings.Contains(string(data), pathBlockBegin) {
				return GuardSatisfied, nil
			}
			return GuardNeedsFix, nil
		},
		Plan: func(env Env, _ check.Check) (*Action, error) {
			act := &Action{
				Description: fmt.Sprintf("prepend managed PATH block to %s", env.RCFile),
				Files:       []string{env.RCFile},
			}
			if fileExists(env.RCFile) {
				act.MutateExisting = []string{env.RCFile}
				act.Undo = RestoreBackup("")
			} else {
				// Creating the rc file from scratch; undoing means removing it.
				act.Undo = RunCommand("rm", env.RCFile)
			}
			return act, nil
		},
		Apply: func(_ context.Context, env Env, _ execx.Runner, _ check.Check) error {
			existing, err := os.ReadFile(env.RCFile)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("read %s: %w", env.RCFile, err)
			}
			block := pathBlockBegin + "\n" + pathBlockBody + "\n" + pathBlockEnd + "\n"
			content := block
			if len(existing) > 0 {
				content = block + "\n" + string(existing)
			}
			return fsutil.WriteAtomic(env.RCFile, []byte(content), 0o644)
		},
	}
}

// configDirFixer creates the tool config directory.
func configDirFixer() *Fixer {
	return &Fixer{
		ID:       "config-dir",
		Pattern:  "config.dir.missing",
		Category: CategoryAuto,
		Guard: func(env Env, _ check.Check) (GuardResult, error) {
			if dirExists(env.ConfigDir) {
				return GuardSatisfied, nil
			}
			return GuardNeedsFix, nil
		},
		Plan: func(env Env, _ check.Check) (*Action, error) {
			return &Action{
				Description: fmt.Sprintf("create config directory %s", env.ConfigDir),
				Files:       []string{env.ConfigDir},
				Undo:        RunCommand("rmdir", env.ConfigDir),
			}, nil
		},
		Apply: func(_ context.Context, env Env, _ execx.Runner, _ check.Check) error {
			if err := os.MkdirAll(env.ConfigDir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", env.ConfigDir, err)
			}
			return nil
		},
	}
}

// configMissingFixer installs the stock zsh config from the template dir.
func configMissingFixer() *Fixer {
	target := func(env Env) string { return filepath.Join(env.ConfigDir, stockRCName) }
	template := func(env Env) string { return filepath.Join(env.TemplateDir, "zsh", stockRCName) }
	return &Fixer{
		ID:       "config-missing",
		Pattern:  "config.missing",
		Category: CategoryAuto,
		Guard: func(env Env, _ check.Check) (GuardResult, error) {
			if fileExists(target(env)) {
				return GuardSatisfied, nil
			}
			if !fileExists(template(env)) {
				return GuardBlocked, fmt.Errorf("template %s not found", template(env))
			}
			return GuardNeedsFix, nil
		},
		Plan: func(env Env, _ check.Check) (*Action, error) {
			return &Action{
				Description: fmt.Sprintf("install stock config %s", target(env)),
				Files:       []string{target(env)},
				Undo:        RunCommand("rm", target(env)),
			}, nil
		},
		Apply: func(_ context.Context, env Env, _ execx.Runner, _ check.Check) error {
			data, err := os.ReadFile(template(env))
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			return fsutil.WriteAtomic(target(env), data, 0o644)
		},
	}
}

// rcThemeFixer sets the managed theme line in the rc file. Prompt category:
// it rewrites a user-owned setting.
func rcThemeFixer() *Fixer {
	return &Fixer{
		ID:       "rc-theme",
		Pattern:  "shell.rc.theme",
		Category: CategoryPrompt,
		Guard: func(env Env, _ check.Check) (GuardResult, error) {
			data, err := os.ReadFile(env.RCFile)
			if os.IsNotExist(err) {
				return GuardBlocked, fmt.Errorf("%s does not exist", env.RCFile)
			}
			if err != nil {
				return GuardBlocked, fmt.Errorf("read %s: %w", env.RCFile, err)
			}
			for _, line := range strings.Split(string(data), "\n") {
				if strings.TrimSpace(line) == themeLine {
					return GuardSatisfied, nil
				}
			}
			return GuardNeedsFix, nil
		},
		Plan: func(env Env, _ check.Check) (*Action, error) {
			return &Action{
				Description:    fmt.Sprintf("set %s in %s", themeLine, env.RCFile),
				Files:          []string{env.RCFile},
				MutateExisting: []string{env.RCFile},
				Undo:           RestoreBackup(""),
			}, nil
		},
		Apply: func(_ context.Context, env Env, _ execx.Runner, _ check.Check) error {
			data, err := os.ReadFile(env.RCFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", env.RCFile, err)
			}
			lines := strings.Split(string(data), "\n")
			replaced := false
			for i, line := range lines {
				if strings.HasPrefix(strings.TrimSpace(line), "ZSH_THEME=") {
					lines[i] = themeLine
					replaced = true
					break
				}
			}
			if !replaced {
				// Keep the trailing newline: insert before the empty
				// element a final "\n" splits into.
				if n := len(lines); n > 0 && lines[n-1] == "" {
					lines[n-1] = themeLine
					lines = append(lines, "")
				} else {
					lines = append(lines, themeLine, "")
				}
			}
			return fsutil.WriteAtomic(env.RCFile, []byte(strings.Join(lines, "\n")), 0o644)
		},
	}
}

// pluginCloneFixer clones a missing zsh plugin. Prompt category: it reaches
// the network, and its undo removes a directory tree.
func pluginCloneFixer() *Fixer {
	dirFor := func(env Env, c check.Check) string {
		return filepath.Join(env.PluginDir, pluginName(c.CheckID))
	}
	return &Fixer{
		ID:       "plugin-clone",
		Pattern:  "plugin.*",
		Category: CategoryPrompt,
		Guard: func(env Env, c check.Check) (GuardResult, error) {
			name := pluginName(c.CheckID)
			if _, ok := pluginRepos[name]; !ok {
				return GuardBlocked, fmt.Errorf("unknown plugin %q", name)
			}
			if env.LookPath == nil {
				return GuardBlocked, fmt.Errorf("no binary lookup available")
			}
			if _, err := env.LookPath("git"); err != nil {
				return GuardBlocked, fmt.Errorf("git not found in PATH")
			}
			if dirExists(dirFor(env, c)) {
				return GuardSatisfied, nil
			}
			return GuardNeedsFix, nil
		},
		Plan: func(env Env, c check.Check) (*Action, error) {
			dir := dirFor(env, c)
			return &Action{
				Description: fmt.Sprintf("clone %s plugin into %s", pluginName(c.CheckID), dir),
				Files:       []string{dir},
				Undo:        RunCommand("rm", "-rf", dir),
				Destructive: true,
			}, nil
		},
		Apply: func(ctx context.Context, env Env, runner execx.Runner, c check.Check) error {
			name := pluginName(c.CheckID)
			dir := dirFor(env, c)
			if err := os.MkdirAll(env.PluginDir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", env.PluginDir, err)
			}
			_, stderr, code, err := runner.Run(ctx, "", []string{
				"git", "clone", "--depth", "1", pluginRepos[name], dir,
			})
			if err != nil {
				return fmt.Errorf("git clone %s: %w", name, err)
			}
			if code != 0 {
				return fmt.Errorf("git clone %s exited %d: %s", name, code, strings.TrimSpace(stderr))
			}
			return nil
		},
	}
}

// defaultShellFixer suggests switching the login shell. Manual: chsh is a
// privileged system change this engine never performs.
func defaultShellFixer() *Fixer {
	return &Fixer{
		ID:       "default-shell",
		Pattern:  "shell.default",
		Category: CategoryManual,
		Guard: func(env Env, _ check.Check) (GuardResult, error) {
			if strings.HasSuffix(env.Shell, "/zsh") || env.Shell == "zsh" {
				return GuardSatisfied, nil
			}
			return GuardNeedsFix, nil
		},
		Suggest: func(env Env, _ check.Check) string {
			return "change the login shell to zsh: chsh -s $(command -v zsh)"
		},
	}
}

// missingToolFixer suggests installing an absent CLI tool. Manual: package
// installs are owned by the installation phases, not the repair engine.
func missingToolFixer() *Fixer {
	return &Fixer{
		ID:       "missing-tool",
		Pattern:  "tool.*",
		Category: CategoryManual,
		Guard: func(env Env, c check.Check) (GuardResult, error) {
			tool := strings.TrimPrefix(c.CheckID, "tool.")
			if env.LookPath == nil {
				return GuardNeedsFix, nil
			}
			if _, err := env.LookPath(tool); err == nil {
				return GuardSatisfied, nil
			}
			return GuardNeedsFix, nil
		},
		Suggest: func(_ Env, c check.Check) string {
			tool := strings.TrimPrefix(c.CheckID, "tool.")
			return fmt.Sprintf("install %s with your package manager (e.g. brew install %s)", tool, tool)
		},
	}
}

func pluginName(checkID string) string {
	return strings.TrimPrefix(checkID, "plugin.")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
