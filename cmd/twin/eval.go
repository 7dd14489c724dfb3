package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/db"
	"twin_corpus/internal/ingest"
	"twin_corpus/internal/stylometry"
	"twin_corpus/internal/workspace"
)

var (
	evalGenerated string
	evalReference string
	evalOut       string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score generated samples against the persona's writing style",
	RunE: func(cmd *cobra.Command, args []string) error {
		if evalGenerated == "" {
			return errors.New("--generated is required")
		}
		generated, err := ingest.ReadSamples(evalGenerated)
		if err != nil {
			return err
		}

		var reference []string
		if evalReference != "" {
			reference, err = ingest.ReadSamples(evalReference)
		} else {
			var units []corpus.TrainingUnit
			units, err = db.LoadUnits(cfg.Storage.Database, corpus.SplitTest)
			reference = corpus.Responses(units)
		}
		if err != nil {
			return err
		}

		report := stylometry.Evaluate(cmd.Context(), generated, reference, stylometry.Options{
			FunctionWords:    cfg.Evaluation.FunctionWords,
			TopFunctionWords: cfg.Evaluation.TopFunctionN,
			Discriminator:    stylometry.NewFeatureDiscriminator(reference),
		})

		path := evalOut
		if path == "" {
			path = workspace.ReportPath(layout().Reports, "style-"+filepath.Base(evalGenerated))
		}
		if err := workspace.SaveReport(path, report); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalGenerated, "generated", "", "generated samples (.jsonl, .txt, .md, .docx, .pdf or a directory)")
	evalCmd.Flags().StringVar(&evalReference, "reference", "", "reference samples (default: responses of the test split)")
	evalCmd.Flags().StringVarP(&evalOut, "out", "o", "", "report path (default: workspace reports dir)")
	rootCmd.AddCommand(evalCmd)
}
