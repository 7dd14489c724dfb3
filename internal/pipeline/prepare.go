package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"twin_corpus/internal/chunk"
	"twin_corpus/internal/consent"
	"twin_corpus/internal/corpus"
	"twin_corpus/internal/db"
	"twin_corpus/internal/ingest"
	"twin_corpus/internal/logging"
	"twin_corpus/internal/scrub"
	"twin_corpus/internal/split"
)

const ReviewFileName = "review.jsonl"

type Options struct {
	Inputs    []string
	OutputDir string
	// Database is optional; when set the run, its units, the review queue
	// and an audit event are stored there.
	Database       string
	ConsentFile    string
	RequireConsent bool
	Chunk          chunk.Options
	Workers        int
}

type Summary struct {
	RunID       string               `json:"run_id"`
	Records     int                  `json:"records"`
	Skipped     int                  `json:"skipped"`
	ReviewItems int                  `json:"review_items"`
	Duplicates  int                  `json:"duplicates"`
	Units       int                  `json:"units"`
	Splits      map[corpus.Split]int `json:"splits"`
}

type Preparer struct {
	Normalizer *ingest.Normalizer
	Scrubber   *scrub.Scrubber
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewPreparer(n *ingest.Normalizer, s *scrub.Scrubber, log logrus.FieldLogger) *Preparer {
	if log == nil {
		log = logging.New("pipeline")
	}
	return &Preparer{Normalizer: n, Scrubber: s, Log: log, Now: time.Now}
}

type threadResult struct {
	units   []corpus.TrainingUnit
	dropped int
}

// Prepare turns raw inputs into the split corpus: normalize, scrub, group
// by thread, dedupe, chunk and assign splits. Records whose detector failed
// are listed in review.jsonl and never reach a split file.
func (p *Preparer) Prepare(ctx context.Context, opts Options) (Summary, []corpus.TrainingUnit, error) {
	started := p.Now()
	if opts.RequireConsent {
		rec, err := consent.Check(opts.ConsentFile)
		if err != nil {
			return Summary{}, nil, err
		}
		p.Log.WithField("user", rec.User).Debug("consent verified")
	}

	normalized, err := p.Normalizer.LoadFiles(opts.Inputs...)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("normalize inputs: %w", err)
	}

	scrubbed, errs := Process(normalized.Records, opts.Workers, func(rec corpus.MessageRecord) (corpus.ScrubbedRecord, error) {
		if err := ctx.Err(); err != nil {
			return corpus.ScrubbedRecord{}, err
		}
		return p.Scrubber.ScrubRecord(ctx, rec), nil
	})
	if len(errs) > 0 {
		return Summary{}, nil, fmt.Errorf("scrub records: %w", errors.Join(errs...))
	}

	review := make([]corpus.ReviewItem, 0)
	for _, r := range scrubbed {
		if r.NeedsReview() {
			review = append(review, corpus.ReviewItem{ThreadID: r.ThreadID, Timestamp: r.Timestamp, Reason: string(r.Outcome)})
		}
	}

	threads := chunk.GroupThreads(scrubbed)
	perThread, errs := Process(threads, opts.Workers, func(t chunk.Thread) (threadResult, error) {
		if err := ctx.Err(); err != nil {
			return threadResult{}, err
		}
		kept, dropped := chunk.Dedupe(t)
		return threadResult{units: chunk.Chunk(kept, opts.Chunk), dropped: dropped}, nil
	})
	if len(errs) > 0 {
		return Summary{}, nil, fmt.Errorf("chunk threads: %w", errors.Join(errs...))
	}

	var (
		units      []corpus.TrainingUnit
		duplicates int
	)
	for _, r := range perThread {
		units = append(units, r.units...)
		duplicates += r.dropped
	}
	units = split.Apply(units)
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].ThreadID != units[j].ThreadID {
			return units[i].ThreadID < units[j].ThreadID
		}
		return units[i].Timestamp.Before(units[j].Timestamp)
	})

	counts, err := corpus.WriteSplits(opts.OutputDir, units)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("write splits: %w", err)
	}
	if err := corpus.WriteJSONL(filepath.Join(opts.OutputDir, ReviewFileName), review); err != nil {
		return Summary{}, nil, fmt.Errorf("write review queue: %w", err)
	}

	summary := Summary{
		RunID:       uuid.NewString(),
		Records:     len(normalized.Records),
		Skipped:     normalized.Skipped,
		ReviewItems: len(review),
		Duplicates:  duplicates,
		Units:       len(units),
		Splits:      counts,
	}

	if opts.Database != "" {
		run := db.Run{
			ID:          summary.RunID,
			StartedAt:   started,
			FinishedAt:  p.Now(),
			Inputs:      opts.Inputs,
			Records:     summary.Records,
			Skipped:     summary.Skipped,
			Duplicates:  summary.Duplicates,
			Units:       summary.Units,
			ReviewItems: summary.ReviewItems,
			Status:      "ok",
		}
		if err := db.PersistRun(opts.Database, run, units, review); err != nil {
			return Summary{}, nil, fmt.Errorf("persist run: %w", err)
		}
		if err := db.AppendAudit(opts.Database, "prepare", summary, run.FinishedAt); err != nil {
			return Summary{}, nil, err
		}
		if len(review) > 0 {
			if err := db.AppendAudit(opts.Database, "review", reviewAudit(summary.RunID, review), run.FinishedAt); err != nil {
				return Summary{}, nil, err
			}
		}
	}

	p.Log.WithFields(logrus.Fields{
		"run_id":     summary.RunID,
		"records":    summary.Records,
		"skipped":    summary.Skipped,
		"review":     summary.ReviewItems,
		"duplicates": summary.Duplicates,
		"units":      summary.Units,
	}).Info("corpus prepared")
	return summary, units, nil
}

// reviewAudit counts review items per reason. Thread ids and bodies stay in
// the review queue.
func reviewAudit(runID string, review []corpus.ReviewItem) map[string]any {
	reasons := make(map[string]int)
	for _, r := range review {
		reasons[r.Reason]++
	}
	return map[string]any{"run_id": runID, "items": len(review), "reasons": reasons}
}
