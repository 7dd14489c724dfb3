package scrub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/logging"
)

const DefaultThreshold = 0.5

// DetectionUnavailableError reports that the detector failed or timed out.
// The text it accompanies is unscrubbed and must not reach the corpus.
type DetectionUnavailableError struct {
	Err error
}

func (e *DetectionUnavailableError) Error() string {
	return fmt.Sprintf("pii detection unavailable: %v", e.Err)
}

func (e *DetectionUnavailableError) Unwrap() error { return e.Err }

// Scrubbed is the result of scrubbing one text.
type Scrubbed struct {
	Text       string
	Redactions []corpus.Redaction
	Outcome    corpus.Outcome
}

type Scrubber struct {
	Detector  Detector
	Threshold float64
	Timeout   time.Duration
	Log       logrus.FieldLogger
}

func New(d Detector, threshold float64, timeout time.Duration, log logrus.FieldLogger) *Scrubber {
	if log == nil {
		log = logging.New("scrub")
	}
	return &Scrubber{Detector: d, Threshold: threshold, Timeout: timeout, Log: log}
}

// maxPasses bounds re-detection. A replacement can expose a neighbouring
// match, such as a number glued to a redacted phone number.
const maxPasses = 8

// Scrub replaces every detection at or above the threshold with its
// category placeholder, re-detecting on the redacted text until a pass finds
// nothing. When the detector is unavailable the text comes back unchanged
// with OutcomeDetectorUnavailable and a *DetectionUnavailableError.
func (s *Scrubber) Scrub(ctx context.Context, text string) (Scrubbed, error) {
	if strings.TrimSpace(text) == "" {
		return Scrubbed{Text: text, Outcome: corpus.OutcomeNoDetection}, nil
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cur := text
	var redactions []corpus.Redaction
	for pass := 0; pass < maxPasses; pass++ {
		found, err := s.Detector.Detect(ctx, cur)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return Scrubbed{Text: text, Outcome: corpus.OutcomeDetectorUnavailable}, &DetectionUnavailableError{Err: err}
		}
		spans := filterSpans(found, s.Threshold, len(cur))
		if len(spans) == 0 {
			break
		}
		spans = mergeSpans(absorb(spans, redactions))
		cur, redactions = replace(cur, spans, redactions)
		if pass == maxPasses-1 {
			s.Log.WithField("passes", maxPasses).Warn("scrub stopped before detections ran out")
		}
	}
	if len(redactions) == 0 {
		return Scrubbed{Text: text, Outcome: corpus.OutcomeNoDetection}, nil
	}
	return Scrubbed{Text: cur, Redactions: redactions, Outcome: corpus.OutcomeRedacted}, nil
}

// absorb widens spans over any earlier placeholder they touch, so a
// placeholder is either kept whole or replaced whole.
func absorb(spans []span, prior []corpus.Redaction) []span {
	for i := range spans {
		for _, r := range prior {
			if r.Start < spans[i].End && spans[i].Start < r.End {
				spans[i].Start = min(spans[i].Start, r.Start)
				spans[i].End = max(spans[i].End, r.End)
			}
		}
	}
	return spans
}

// replace substitutes placeholders for spans, which are sorted and disjoint.
// Earlier redactions are shifted to the new text or dropped when a span
// covers them.
func replace(text string, spans []span, prior []corpus.Redaction) (string, []corpus.Redaction) {
	var b strings.Builder
	out := make([]corpus.Redaction, 0, len(prior)+len(spans))
	last, shift, pi := 0, 0, 0
	for _, sp := range spans {
		for ; pi < len(prior) && prior[pi].End <= sp.Start; pi++ {
			r := prior[pi]
			r.Start += shift
			r.End += shift
			out = append(out, r)
		}
		for pi < len(prior) && prior[pi].Start < sp.End {
			pi++
		}
		b.WriteString(text[last:sp.Start])
		start := b.Len()
		b.WriteString(Placeholder(sp.Category))
		out = append(out, corpus.Redaction{Start: start, End: b.Len(), Category: strings.ToUpper(sp.Category)})
		last = sp.End
		shift = b.Len() - sp.End
	}
	for ; pi < len(prior); pi++ {
		r := prior[pi]
		r.Start += shift
		r.End += shift
		out = append(out, r)
	}
	b.WriteString(text[last:])
	return b.String(), out
}

// ScrubRecord scrubs the body and subject of rec. Redaction offsets refer to
// the scrubbed body. A detector failure on either field routes the record to
// review.
func (s *Scrubber) ScrubRecord(ctx context.Context, rec corpus.MessageRecord) corpus.ScrubbedRecord {
	log := s.Log.WithFields(logrus.Fields{"thread_id": rec.ThreadID, "timestamp": rec.Timestamp})

	body, err := s.Scrub(ctx, rec.Body)
	if err != nil {
		log.WithError(err).Warn("body not scrubbed, routing to review")
		return corpus.ScrubbedRecord{MessageRecord: rec, Outcome: corpus.OutcomeDetectorUnavailable}
	}
	out := rec
	out.Body = body.Text
	outcome := body.Outcome

	if rec.Subject != "" {
		subject, err := s.Scrub(ctx, rec.Subject)
		if err != nil {
			log.WithError(err).Warn("subject not scrubbed, routing to review")
			return corpus.ScrubbedRecord{MessageRecord: rec, Outcome: corpus.OutcomeDetectorUnavailable}
		}
		out.Subject = subject.Text
		if subject.Outcome == corpus.OutcomeRedacted {
			outcome = corpus.OutcomeRedacted
		}
	}
	if outcome == corpus.OutcomeRedacted {
		log.WithField("redactions", len(body.Redactions)).Debug("record redacted")
	}
	return corpus.ScrubbedRecord{MessageRecord: out, Redactions: body.Redactions, Outcome: outcome}
}

type span struct {
	Start      int
	End        int
	Category   string
	Confidence float64
	order      int
}

func filterSpans(found []Detection, threshold float64, n int) []span {
	out := make([]span, 0, len(found))
	for i, d := range found {
		if d.Confidence < threshold {
			continue
		}
		start, end := clamp(d.Start, 0, n), clamp(d.End, 0, n)
		if start >= end || d.Category == "" {
			continue
		}
		out = append(out, span{Start: start, End: end, Category: d.Category, Confidence: d.Confidence, order: i})
	}
	return out
}

// mergeSpans unions overlapping spans. The merged span keeps the category of
// its highest-confidence member; ties go to the earliest span.
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].order < spans[j].order
	})
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		cur := &merged[len(merged)-1]
		if sp.Start >= cur.End {
			merged = append(merged, sp)
			continue
		}
		if sp.End > cur.End {
			cur.End = sp.End
		}
		if sp.Confidence > cur.Confidence {
			cur.Category = sp.Category
			cur.Confidence = sp.Confidence
		}
	}
	return merged
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
