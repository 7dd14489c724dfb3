package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"twin_corpus/internal/config"
	"twin_corpus/internal/embedding"
	"twin_corpus/internal/logging"
	"twin_corpus/internal/workspace"
)

var (
	cfgFile      string
	workspaceDir string
	cfg          *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "twin",
	Short:         "Curate a persona corpus, retrieve style exemplars and evaluate generated text",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		return logging.Init(cfg.Logger.Level, cfg.Logger.Format, os.Stderr)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "twin: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <workspace>/configs/twin.yaml)")
	rootCmd.PersistentFlags().StringVar(&workspaceDir, "workspace", ".", "workspace directory")
}

// loadConfig prefers --config, then the workspace config file, then
// built-in defaults rooted at the workspace.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	path := workspace.LayoutAt(workspaceDir).ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	c := config.Default()
	l := workspace.LayoutAt(workspaceDir)
	c.Storage.Workspace = workspaceDir
	c.Storage.Database = l.DatabasePath()
	c.Consent.File = l.ConsentPath()
	return c, nil
}

func layout() workspace.Layout {
	return workspace.LayoutAt(cfg.Storage.Workspace)
}

func newEmbedder(c *config.Config) (embedding.Embedder, error) {
	var (
		inner embedding.Embedder
		err   error
	)
	switch c.Embedding.Provider {
	case "ollama":
		inner, err = embedding.NewOllama(c.Embedding.Model, c.Embedding.BaseURL)
	default:
		inner, err = embedding.NewHashing(c.Embedding.Dimension)
	}
	if err != nil {
		return nil, err
	}
	return embedding.NewCached(inner, c.Retrieval.CacheSize), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
