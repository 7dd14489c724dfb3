package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"twin_corpus/internal/pipeline"
	"twin_corpus/internal/prompts"
)

var (
	retrieveK      int
	retrievePrompt bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Rank stored exemplars by similarity to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		idx, err := newIndex()
		if err != nil {
			return err
		}
		if _, err := pipeline.RestoreExemplars(idx, cfg.Storage.Database); err != nil {
			return err
		}
		k := retrieveK
		if k == 0 {
			k = cfg.Retrieval.TopK
		}
		results, err := idx.Retrieve(cmd.Context(), query, k)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if retrievePrompt {
			persona := prompts.Persona{Name: cfg.Persona.Name, Description: cfg.Persona.Description}
			fmt.Fprintln(out, prompts.ExemplarPrompt(persona, query, results, cfg.Retrieval.PromptShots))
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%d. [%.4f] %s (%s)\n", i+1, r.Score, r.Entry.Text, r.Entry.Metadata.ThreadID)
		}
		return nil
	},
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", 0, "number of exemplars (default retrieval.topK)")
	retrieveCmd.Flags().BoolVar(&retrievePrompt, "prompt", false, "print the assembled few-shot prompt instead of the ranking")
	rootCmd.AddCommand(retrieveCmd)
}
