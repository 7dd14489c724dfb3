package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/db"
	"twin_corpus/internal/leakguard"
	"twin_corpus/internal/pipeline"
)

var checkLeakFile string

var checkLeakCmd = &cobra.Command{
	Use:   "check-leak [text]",
	Short: "Check generated text for verbatim training content",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if checkLeakFile != "" {
			raw, err := os.ReadFile(checkLeakFile)
			if err != nil {
				return fmt.Errorf("read generated text: %w", err)
			}
			text = string(raw)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("nothing to check: pass text or --file")
		}

		units, err := db.LoadUnits(cfg.Storage.Database, corpus.SplitTrain)
		if err != nil {
			return err
		}
		guard, err := leakguard.NewIndex(corpus.Responses(units), leakguard.Options{
			NGram:     cfg.Leakage.NGram,
			Backend:   cfg.Leakage.Backend,
			ErrorRate: cfg.Leakage.ErrorRate,
		})
		if err != nil {
			return err
		}
		output, verdict, err := pipeline.GuardOutput(guard, text, cfg.Storage.Database)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			leakguard.Verdict
			Output string `json:"output"`
		}{verdict, output})
	},
}

func init() {
	checkLeakCmd.Flags().StringVar(&checkLeakFile, "file", "", "read generated text from a file")
	rootCmd.AddCommand(checkLeakCmd)
}
