package leakguard

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

const trainingResponse = "honestly I think we should move the offsite to the lake house because the city venue fell through again last week"

func words(n int, prefix string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(out, " ")
}

func copiedSpan() string {
	tokens := strings.Fields(trainingResponse)
	return "sure thing, " + strings.Join(tokens[3:18], " ") + " so yeah"
}

func TestCopiedSpanIsFlagged(t *testing.T) {
	for _, backend := range []string{BackendExact, BackendBloom} {
		idx, err := NewIndex([]string{trainingResponse, words(30, "x")}, Options{Backend: backend})
		if err != nil {
			t.Fatalf("%s: new index: %v", backend, err)
		}
		if !idx.IsProbableLeak(copiedSpan()) {
			t.Fatalf("%s: expected 15-token copy to be flagged", backend)
		}
		v := idx.Check(copiedSpan())
		if !v.Leak || v.VerbatimWindows != 4 {
			t.Fatalf("%s: unexpected verdict %+v", backend, v)
		}
	}
}

func TestUnrelatedTextIsNotFlagged(t *testing.T) {
	idx, err := NewIndex([]string{trainingResponse}, Options{})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if idx.IsProbableLeak(words(40, "y")) {
		t.Fatal("unrelated text flagged")
	}
	// eleven shared tokens are below the window size
	tokens := strings.Fields(trainingResponse)
	if idx.IsProbableLeak(strings.Join(tokens[:11], " ") + " completely different ending here") {
		t.Fatal("span shorter than the window flagged")
	}
	if idx.IsProbableLeak("short") {
		t.Fatal("text shorter than the window flagged")
	}
}

func TestMatchingIsCaseSensitive(t *testing.T) {
	idx, err := NewIndex([]string{trainingResponse}, Options{NGram: 5})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if idx.IsProbableLeak(strings.ToUpper(trainingResponse)) {
		t.Fatal("expected exact token matching")
	}
}

func TestSanitizeReplacesPlaceholderLeaks(t *testing.T) {
	idx, err := NewIndex([]string{trainingResponse}, Options{})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	out, filtered := idx.Sanitize("ping me at [EMAIL] later")
	if !filtered || out != FilteredResponse {
		t.Fatalf("expected placeholder leak to be filtered, got %q", out)
	}
	out, filtered = idx.Sanitize("see you [soon]")
	if filtered || out != "see you [soon]" {
		t.Fatalf("unexpected filtering: %q", out)
	}
	if _, filtered := idx.Sanitize(copiedSpan()); !filtered {
		t.Fatal("expected verbatim copy to be filtered")
	}
}

func TestNewIndexRejectsBadOptions(t *testing.T) {
	if _, err := NewIndex(nil, Options{Backend: "lsh"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
	if _, err := NewIndex(nil, Options{NGram: -2}); err == nil {
		t.Fatal("expected ngram error")
	}
	if _, err := NewIndex(nil, Options{Backend: BackendBloom, ErrorRate: 2}); err == nil {
		t.Fatal("expected error rate error")
	}
}

func TestConcurrentChecks(t *testing.T) {
	idx, err := NewIndex([]string{trainingResponse}, Options{Backend: BackendBloom})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !idx.IsProbableLeak(copiedSpan()) {
				errs <- "missed leak"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}
