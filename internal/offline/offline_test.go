package offline

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"twin_corpus/internal/chunk"
	"twin_corpus/internal/corpus"
	"twin_corpus/internal/embedding"
	"twin_corpus/internal/ingest"
	"twin_corpus/internal/leakguard"
	"twin_corpus/internal/logging"
	"twin_corpus/internal/pipeline"
	"twin_corpus/internal/retrieval"
	"twin_corpus/internal/scrub"
	"twin_corpus/internal/stylometry"
)

type failTransport struct{}

func (f failTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled for offline test")
}

func TestOfflineMode(t *testing.T) {
	original := http.DefaultTransport
	http.DefaultTransport = failTransport{}
	t.Cleanup(func() { http.DefaultTransport = original })

	var b strings.Builder
	b.WriteString(`[`)
	for i := 0; i < 40; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		outgoing := "false"
		body := "what are you doing later, number " + strings.Repeat("x", i%5+1) + "?"
		if i%2 == 1 {
			outgoing = "true"
			body = "probably heading to the gym then dinner, call 555-123-4567 if needed " + strings.Repeat("y", i%7+1)
		}
		ts := time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339)
		b.WriteString(`{"thread_id":"thread-` + string(rune('a'+i%4)) + `","timestamp":"` + ts + `","is_outgoing":` + outgoing + `,"body":"` + body + `"}`)
	}
	b.WriteString(`]`)
	input := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(input, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	log := logging.OrDiscard(nil)
	ctx := context.Background()
	prep := pipeline.NewPreparer(ingest.NewNormalizer(log), scrub.New(scrub.NewRegexDetector(), scrub.DefaultThreshold, time.Second, log), log)
	summary, units, err := prep.Prepare(ctx, pipeline.Options{
		Inputs:    []string{input},
		OutputDir: t.TempDir(),
		Chunk:     chunk.Options{MaxTokens: 60},
	})
	if err != nil {
		t.Fatalf("expected corpus preparation to work offline: %v", err)
	}
	if summary.Units == 0 {
		t.Fatal("expected training units")
	}
	for _, u := range units {
		if strings.Contains(u.Response, "555-123-4567") {
			t.Fatalf("phone number survived scrubbing: %+v", u)
		}
	}

	emb, err := embedding.NewHashing(64)
	if err != nil {
		t.Fatalf("embedder: %v", err)
	}
	idx := retrieval.NewIndex(embedding.NewCached(emb, 16), retrieval.Options{Log: log})
	if _, err := idx.Build(ctx, units); err != nil {
		t.Fatalf("expected index build to work offline: %v", err)
	}
	if _, err := idx.Retrieve(ctx, "heading to the gym", 3); err != nil {
		t.Fatalf("expected retrieval to work offline: %v", err)
	}

	guard, err := leakguard.NewIndex(corpus.Responses(units), leakguard.Options{Backend: leakguard.BackendBloom})
	if err != nil {
		t.Fatalf("leak index: %v", err)
	}
	if guard.Windows() == 0 {
		t.Fatal("expected fingerprinted windows")
	}

	report := stylometry.Evaluate(ctx, []string{"heading out now, talk later"}, corpus.Responses(units), stylometry.Options{})
	if report.ReferenceSamples != len(units) {
		t.Fatalf("unexpected report: %+v", report)
	}
}
