package scrub

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// Detection is a candidate PII span. Start and End are byte offsets into the
// scanned text.
type Detection struct {
	Start      int
	End        int
	Category   string
	Confidence float64
}

// Detector finds PII spans in text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Detection, error)
}

const (
	CategoryEmail      = "EMAIL"
	CategoryAPIKey     = "API_KEY"
	CategorySSN        = "SSN"
	CategoryCreditCard = "CREDIT_CARD"
	CategoryAddress    = "ADDRESS"
	CategoryIPAddress  = "IP_ADDRESS"
	CategoryPhone      = "PHONE"
	CategoryURL        = "URL"
)

type pattern struct {
	re         *regexp.Regexp
	category   string
	confidence float64
}

// RegexDetector matches structured PII with fixed patterns. Confidence is a
// per-pattern constant reflecting how specific the format is.
type RegexDetector struct {
	patterns []pattern
}

func NewRegexDetector() *RegexDetector {
	specs := []struct {
		expr       string
		category   string
		confidence float64
	}{
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, CategoryEmail, 0.95},
		// only the token itself is redacted, the keyword stays
		{`(?i)(?:api[_\-]?key|token|secret|bearer)[\s"':=]+([a-zA-Z0-9_\-.]{20,})`, CategoryAPIKey, 0.90},
		{`\b(?:\d{3}-?\d{2}-?\d{4}|\d{9})\b`, CategorySSN, 0.85},
		{`\b(?:\d{4}[\-\s]?){3}\d{4}\b`, CategoryCreditCard, 0.85},
		// house number, one to four capitalised name words, street suffix
		{`\b\d{1,5} (?:[A-Z][a-z]+ ){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl)\b`, CategoryAddress, 0.75},
		{`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`, CategoryIPAddress, 0.70},
		{`(\+?1?[\-.\s]?)?\(?([0-9]{3})\)?[\-.\s]?([0-9]{3})[\-.\s]?([0-9]{4})`, CategoryPhone, 0.65},
		{`\bhttps?://[^\s<>"]+`, CategoryURL, 0.60},
		// ZIP codes: below the default threshold
		{`\b\d{5}(?:-\d{4})?\b`, CategoryAddress, 0.40},
	}
	d := &RegexDetector{}
	for _, s := range specs {
		d.patterns = append(d.patterns, pattern{
			re:         regexp.MustCompile(s.expr),
			category:   s.category,
			confidence: s.confidence,
		})
	}
	return d
}

func (d *RegexDetector) Detect(ctx context.Context, text string) ([]Detection, error) {
	var out []Detection
	for _, p := range d.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if p.category == CategoryAPIKey && len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}
			start, end = trimSpan(text, start, end)
			if start >= end {
				continue
			}
			out = append(out, Detection{Start: start, End: end, Category: p.category, Confidence: p.confidence})
		}
	}
	return out, nil
}

// trimSpan drops whitespace the broader patterns pick up at their edges.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && unicode.IsSpace(rune(text[start])) {
		start++
	}
	for end > start && unicode.IsSpace(rune(text[end-1])) {
		end--
	}
	return start, end
}

// Chain runs detectors in order and concatenates their detections. Any
// detector error fails the whole chain.
type Chain []Detector

func (c Chain) Detect(ctx context.Context, text string) ([]Detection, error) {
	var out []Detection
	for _, d := range c {
		found, err := d.Detect(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// Placeholder renders the marker that replaces a redacted span.
func Placeholder(category string) string {
	return "[" + strings.ToUpper(category) + "]"
}
