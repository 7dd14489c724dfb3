package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/db"
	"twin_corpus/internal/logging"
	"twin_corpus/internal/pipeline"
	"twin_corpus/internal/retrieval"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the train split and store the exemplar index",
	RunE: func(cmd *cobra.Command, args []string) error {
		units, err := db.LoadUnits(cfg.Storage.Database, corpus.SplitTrain)
		if err != nil {
			return err
		}
		idx, err := newIndex()
		if err != nil {
			return err
		}
		n, err := pipeline.BuildExemplars(cmd.Context(), idx, units, cfg.Storage.Database)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d exemplars\n", n)
		return nil
	},
}

func newIndex() (*retrieval.Index, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return retrieval.NewIndex(emb, retrieval.Options{
		Workers:      cfg.Retrieval.BuildWorkers,
		EmbedTimeout: cfg.Retrieval.EmbedTimeout.Std(),
		Log:          logging.New("retrieval"),
	}), nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
