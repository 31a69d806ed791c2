package cli

import (
	"os"
	"os/exec"

	"github.com/lucasnoah/repair/internal/backup"
	"github.com/lucasnoah/repair/internal/config"
	"github.com/lucasnoah/repair/internal/execx"
	"github.com/lucasnoah/repair/internal/fixer"
	"github.com/lucasnoah/repair/internal/journal"
)

// state bundles everything the commands need to touch persisted state.
type state struct {
	cfg     *config.Config
	journal *journal.Journal
	backups *backup.Store
	runner  execx.Runner
}

func openState() (*state, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	return &state{
		cfg:     cfg,
		journal: journal.New(cfg.JournalPath()),
		backups: backup.NewStore(cfg.BackupDir()),
		runner:  &execx.ExecRunner{},
	}, nil
}

// buildEnv assembles the read-only environment fixers inspect.
func buildEnv(cfg *config.Config) (fixer.Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return fixer.Env{}, err
	}
	return fixer.Env{
		Home:        home,
		Shell:       os.Getenv("SHELL"),
		RCFile:      cfg.RCFile,
		ConfigDir:   cfg.ConfigDir,
		TemplateDir: cfg.TemplateDir,
		PluginDir:   cfg.PluginDir,
		LookPath:    exec.LookPath,
	}, nil
}
