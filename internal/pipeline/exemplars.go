package pipeline

import (
	"context"
	"fmt"
	"time"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/db"
	"twin_corpus/internal/leakguard"
	"twin_corpus/internal/retrieval"
)

// BuildExemplars rebuilds idx from the train units and, when dbPath is set,
// stores the new exemplars there.
func BuildExemplars(ctx context.Context, idx *retrieval.Index, units []corpus.TrainingUnit, dbPath string) (int, error) {
	n, err := idx.Build(ctx, units)
	if err != nil {
		return 0, err
	}
	if dbPath == "" {
		return n, nil
	}
	if err := db.PersistExemplars(dbPath, idx.Entries()); err != nil {
		return n, fmt.Errorf("persist exemplars: %w", err)
	}
	if err := db.AppendAudit(dbPath, "index", map[string]int{"exemplars": n}, time.Now()); err != nil {
		return n, err
	}
	return n, nil
}

// RestoreExemplars loads the stored exemplars into idx.
func RestoreExemplars(idx *retrieval.Index, dbPath string) (int, error) {
	entries, err := db.LoadExemplars(dbPath)
	if err != nil {
		return 0, err
	}
	if err := idx.Restore(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// GuardOutput checks generated text against the leak index and returns the
// text to hand back. Flagged verdicts are audited when dbPath is set.
func GuardOutput(guard *leakguard.Index, generated, dbPath string) (string, leakguard.Verdict, error) {
	verdict := guard.Check(generated)
	out := generated
	if verdict.Flagged() {
		out = leakguard.FilteredResponse
		if dbPath != "" {
			if err := db.AppendAudit(dbPath, "leak_check", verdict, time.Now()); err != nil {
				return out, verdict, err
			}
		}
	}
	return out, verdict, nil
}
