package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"twin_corpus/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a workspace with a default config",
	Args:  cobra.MaximumNArgs(1),
	// init creates the config the other commands load.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := workspaceDir
		if len(args) == 1 {
			dir = args[0]
		}
		l, err := workspace.EnsureAt(dir)
		if err != nil {
			return fmt.Errorf("workspace initialization failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "workspace ready at: %s\n", filepath.Clean(l.Root))
		fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", l.ConfigPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
