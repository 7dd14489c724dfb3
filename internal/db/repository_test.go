package db

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/retrieval"
)

var ts = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func TestPersistRunReplacesCorpus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	units := []corpus.TrainingUnit{
		{ThreadID: "b", Split: corpus.SplitTrain, Prompt: "them: hi", Response: "hey", TokenCount: 3, Timestamp: ts},
		{ThreadID: "a", Split: corpus.SplitTest, Prompt: "", Response: "solo", TokenCount: 1, Timestamp: ts},
	}
	review := []corpus.ReviewItem{{ThreadID: "c", Timestamp: ts, Reason: "detector_unavailable"}}
	run := Run{ID: "run-1", StartedAt: ts, FinishedAt: ts.Add(time.Second), Inputs: []string{"in.csv"}, Units: 2, ReviewItems: 1, Status: "ok"}

	if err := PersistRun(dbPath, run, units, review); err != nil {
		t.Fatalf("persist run: %v", err)
	}
	run.ID = "run-2"
	if err := PersistRun(dbPath, run, units[:1], nil); err != nil {
		t.Fatalf("persist second run: %v", err)
	}

	for table, want := range map[string]int{"runs": 2, "training_units": 1, "review_queue": 0} {
		got, err := CountRows(dbPath, table)
		if err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Fatalf("expected %d rows in %s, got %d", want, table, got)
		}
	}

	train, err := LoadUnits(dbPath, corpus.SplitTrain)
	if err != nil {
		t.Fatalf("load units: %v", err)
	}
	if len(train) != 1 || train[0].Response != "hey" || !train[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected units: %+v", train)
	}
}

func TestExemplarsRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	entries := []retrieval.Entry{
		{
			ID:        "e1",
			Text:      "see you there",
			Embedding: []float32{0.25, -1.5, 3},
			Metadata:  retrieval.Metadata{ThreadID: "t1", Timestamp: ts, Split: corpus.SplitTrain, Prompt: "them: coming?"},
		},
	}
	if err := PersistExemplars(dbPath, entries); err != nil {
		t.Fatalf("persist exemplars: %v", err)
	}
	got, err := LoadExemplars(dbPath)
	if err != nil {
		t.Fatalf("load exemplars: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" || got[0].Metadata.Prompt != "them: coming?" {
		t.Fatalf("unexpected exemplars: %+v", got)
	}
	for i, v := range entries[0].Embedding {
		if got[0].Embedding[i] != v {
			t.Fatalf("embedding mismatch at %d: %v", i, got[0].Embedding)
		}
	}
}

func TestAuditEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	if err := AppendAudit(dbPath, "prepare", map[string]int{"units": 2}, ts); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := AppendAudit(dbPath, "leak_check", map[string]bool{"leak": true}, ts); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := AuditEvents(dbPath, "leak_check")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || !strings.Contains(events[0].Details, `"leak":true`) || !events[0].At.Equal(ts) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestCountRowsRejectsUnknownTable(t *testing.T) {
	if _, err := CountRows(filepath.Join(t.TempDir(), "x.db"), "entities; DROP TABLE runs"); err == nil {
		t.Fatal("expected error")
	}
}
