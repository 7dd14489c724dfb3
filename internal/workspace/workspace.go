package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"twin_corpus/internal/config"
)

const (
	BaseDirName    = ".twin"
	ConfigFileName = "twin.yaml"
)

// Layout is the on-disk shape of a workspace.
type Layout struct {
	Root      string
	Raw       string
	Processed string
	Index     string
	Reports   string
	Configs   string
}

func (l Layout) ConfigPath() string { return filepath.Join(l.Configs, ConfigFileName) }

func (l Layout) DatabasePath() string { return filepath.Join(l.Root, "data", "corpus.db") }

func (l Layout) ConsentPath() string { return filepath.Join(l.Root, "consent.yaml") }

func LayoutAt(base string) Layout {
	return Layout{
		Root:      base,
		Raw:       filepath.Join(base, "data", "raw"),
		Processed: filepath.Join(base, "data", "processed"),
		Index:     filepath.Join(base, "index"),
		Reports:   filepath.Join(base, "reports"),
		Configs:   filepath.Join(base, "configs"),
	}
}

func EnsureDefault() (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("resolve home: %w", err)
	}
	return EnsureAt(filepath.Join(home, BaseDirName))
}

// EnsureAt creates the workspace directories under base and writes a default
// config file unless one already exists.
func EnsureAt(base string) (Layout, error) {
	l := LayoutAt(base)
	for _, p := range []string{l.Raw, l.Processed, l.Index, l.Reports, l.Configs} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return Layout{}, fmt.Errorf("mkdir %s: %w", p, err)
		}
	}

	cfgPath := l.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.Storage.Workspace = base
		cfg.Storage.Database = l.DatabasePath()
		cfg.Consent.File = l.ConsentPath()
		if err := config.Save(cfgPath, cfg); err != nil {
			return Layout{}, err
		}
	}
	return l, nil
}
