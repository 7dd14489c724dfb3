package main

import (
	"errors"

	"github.com/spf13/cobra"

	"twin_corpus/internal/chunk"
	"twin_corpus/internal/ingest"
	"twin_corpus/internal/logging"
	"twin_corpus/internal/pipeline"
	"twin_corpus/internal/scrub"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [inputs...]",
	Short: "Normalize, scrub, dedupe, chunk and split raw message exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := args
		if len(inputs) == 0 {
			inputs = cfg.Ingest.Inputs
		}
		if len(inputs) == 0 {
			return errors.New("no inputs given and ingest.inputs is empty")
		}

		scrubber := scrub.New(scrub.NewRegexDetector(), cfg.Scrub.Threshold, cfg.Scrub.DetectTimeout.Std(), logging.New("scrub"))
		prep := pipeline.NewPreparer(ingest.NewNormalizer(logging.New("ingest")), scrubber, logging.New("pipeline"))
		summary, _, err := prep.Prepare(cmd.Context(), pipeline.Options{
			Inputs:         inputs,
			OutputDir:      layout().Processed,
			Database:       cfg.Storage.Database,
			ConsentFile:    cfg.Consent.File,
			RequireConsent: cfg.Consent.Required,
			Chunk: chunk.Options{
				MaxTokens:        cfg.Chunk.MaxTokens,
				MinResponseChars: cfg.Chunk.MinResponseChars,
			},
			Workers: cfg.Chunk.Workers,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}
