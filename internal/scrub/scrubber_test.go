package scrub

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/logging"
)

// stubDetector reports its detections for the text in input only, so a
// second pass over the redacted text finds nothing.
type stubDetector struct {
	input      string
	detections []Detection
	err        error
	block      bool
}

func (s stubDetector) Detect(ctx context.Context, text string) ([]Detection, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	if text != s.input {
		return nil, nil
	}
	return s.detections, nil
}

func newTestScrubber(d Detector) *Scrubber {
	return New(d, DefaultThreshold, time.Second, logging.OrDiscard(nil))
}

func TestScrubRedactsEmail(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	got, err := s.Scrub(context.Background(), "sure, write me at sam.doe@example.com tonight")
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Text != "sure, write me at [EMAIL] tonight" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Outcome != corpus.OutcomeRedacted || len(got.Redactions) != 1 {
		t.Fatalf("unexpected outcome %+v", got)
	}
	r := got.Redactions[0]
	if got.Text[r.Start:r.End] != "[EMAIL]" || r.Category != CategoryEmail {
		t.Fatalf("redaction offsets do not point at placeholder: %+v", r)
	}
}

func TestScrubIsIdempotent(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	inputs := []string{
		"call me on (555) 123-4567 or mail jo@corp.io",
		"server at 10.0.0.12, docs https://intranet.example.com/x?y=1",
		"api_key=abcdefghijklmnopqrstuvwxyz123456 and ssn 123-45-6789",
		"I live at 42 Wallaby Way Street, zip 90210",
		"123-45-6789555-123-4567",
		"nothing sensitive here",
	}
	for _, in := range inputs {
		once, err := s.Scrub(context.Background(), in)
		if err != nil {
			t.Fatalf("scrub %q: %v", in, err)
		}
		twice, err := s.Scrub(context.Background(), once.Text)
		if err != nil {
			t.Fatalf("rescrub %q: %v", once.Text, err)
		}
		if twice.Text != once.Text {
			t.Fatalf("scrub not idempotent: %q -> %q", once.Text, twice.Text)
		}
	}
}

func TestScrubRedactsPIIExposedByEarlierPlaceholder(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	cases := map[string]string{
		"123-45-6789555-123-4567":       "[SSN][PHONE]",
		"555-123-4567http://a.b/c done": "[PHONE][URL] done",
	}
	for in, want := range cases {
		got, err := s.Scrub(context.Background(), in)
		if err != nil {
			t.Fatalf("scrub %q: %v", in, err)
		}
		if got.Text != want {
			t.Fatalf("scrub %q: expected %q, got %q", in, want, got.Text)
		}
		if len(got.Redactions) != 2 {
			t.Fatalf("scrub %q: expected 2 redactions, got %+v", in, got.Redactions)
		}
		for _, r := range got.Redactions {
			if got.Text[r.Start:r.End] != Placeholder(r.Category) {
				t.Fatalf("scrub %q: redaction %+v does not point at its placeholder in %q", in, r, got.Text)
			}
		}
		again, err := s.Scrub(context.Background(), got.Text)
		if err != nil || again.Text != got.Text {
			t.Fatalf("scrub %q not idempotent: %q -> %q (%v)", in, got.Text, again.Text, err)
		}
	}
}

func TestScrubAddressNeedsStreetShape(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	for _, in := range []string{
		"be there in 10 min at most",
		"I have 2 kids and that is the best",
		"we had 3 drinks and left at last",
		"top 5 things to do first",
	} {
		got, err := s.Scrub(context.Background(), in)
		if err != nil {
			t.Fatalf("scrub %q: %v", in, err)
		}
		if got.Text != in || got.Outcome != corpus.OutcomeNoDetection {
			t.Fatalf("ordinary chat redacted: %q -> %q", in, got.Text)
		}
	}

	got, err := s.Scrub(context.Background(), "meet me at 221 Baker Street tonight")
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Text != "meet me at [ADDRESS] tonight" {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestScrubKeepsAPIKeyLabel(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	got, err := s.Scrub(context.Background(), "token: abcdefghijklmnopqrstuvwxyz")
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Text != "token: [API_KEY]" {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestScrubMergesOverlappingSpans(t *testing.T) {
	text := "abcdefghij"
	s := newTestScrubber(stubDetector{input: text, detections: []Detection{
		{Start: 2, End: 6, Category: "PHONE", Confidence: 0.6},
		{Start: 4, End: 8, Category: "SSN", Confidence: 0.9},
		{Start: 8, End: 9, Category: "URL", Confidence: 0.7},
		{Start: 0, End: 1, Category: "NAME", Confidence: 0.3},
		{Start: 9, End: 50, Category: "IP_ADDRESS", Confidence: 0.7},
	}})
	got, err := s.Scrub(context.Background(), text)
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Text != "ab[SSN][URL][IP_ADDRESS]" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if len(got.Redactions) != 3 {
		t.Fatalf("expected 3 redactions, got %+v", got.Redactions)
	}
}

func TestScrubTieKeepsEarlierCategory(t *testing.T) {
	s := newTestScrubber(stubDetector{input: "012345 rest", detections: []Detection{
		{Start: 0, End: 4, Category: "PHONE", Confidence: 0.8},
		{Start: 2, End: 6, Category: "SSN", Confidence: 0.8},
	}})
	got, err := s.Scrub(context.Background(), "012345 rest")
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Text != "[PHONE] rest" {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestScrubNoDetection(t *testing.T) {
	s := newTestScrubber(NewRegexDetector())
	got, err := s.Scrub(context.Background(), "see you at lunch")
	if err != nil {
		t.Fatalf("scrub: %v", err)
	}
	if got.Outcome != corpus.OutcomeNoDetection || got.Text != "see you at lunch" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestScrubDetectorFailureIsUnavailable(t *testing.T) {
	s := newTestScrubber(Chain{NewRegexDetector(), stubDetector{err: errors.New("model offline")}})
	in := "mail me at a@b.com"
	got, err := s.Scrub(context.Background(), in)
	var unavailable *DetectionUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DetectionUnavailableError, got %v", err)
	}
	if got.Outcome != corpus.OutcomeDetectorUnavailable || got.Text != in {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestScrubTimeoutIsUnavailable(t *testing.T) {
	s := New(stubDetector{block: true}, DefaultThreshold, 20*time.Millisecond, logging.OrDiscard(nil))
	_, err := s.Scrub(context.Background(), "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestScrubRecordRoutesFailuresToReview(t *testing.T) {
	rec := corpus.MessageRecord{ThreadID: "t1", Body: "hi", Subject: "re: jo@corp.io"}

	ok := newTestScrubber(NewRegexDetector()).ScrubRecord(context.Background(), rec)
	if ok.Outcome != corpus.OutcomeRedacted || ok.Subject != "re: [EMAIL]" || ok.NeedsReview() {
		t.Fatalf("expected redacted subject, got %+v", ok)
	}
	if len(ok.Redactions) != 0 {
		t.Fatalf("body redactions should be empty, got %+v", ok.Redactions)
	}

	failed := newTestScrubber(stubDetector{err: errors.New("boom")}).ScrubRecord(context.Background(), rec)
	if !failed.NeedsReview() {
		t.Fatalf("expected review routing, got %+v", failed)
	}
	if !strings.Contains(failed.Subject, "jo@corp.io") {
		t.Fatalf("unavailable outcome must not alter text: %+v", failed)
	}
}
