package leakguard

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"twin_corpus/internal/scrub"
)

const (
	DefaultNGram     = 12
	DefaultErrorRate = 0.001

	BackendExact = "exact"
	BackendBloom = "bloom"

	// FilteredResponse replaces output that failed the check.
	FilteredResponse = "[Response filtered for security]"
)

// rolling hash base
const base = 1099511628211

type Options struct {
	NGram     int
	Backend   string
	ErrorRate float64
}

// Index fingerprints every n-token window of the training responses. It is
// immutable after NewIndex and safe for concurrent use.
type Index struct {
	n       int
	backend string
	set     windowSet
	windows int
	pow     uint64
}

// Verdict is the outcome of checking one generated text.
type Verdict struct {
	Leak            bool `json:"leak"`
	VerbatimWindows int  `json:"verbatim_windows"`
	PlaceholderLeak bool `json:"placeholder_leak"`
}

// Flagged reports whether the text must not be returned as is.
func (v Verdict) Flagged() bool { return v.Leak || v.PlaceholderLeak }

func NewIndex(responses []string, opts Options) (*Index, error) {
	if opts.NGram == 0 {
		opts.NGram = DefaultNGram
	}
	if opts.NGram < 1 {
		return nil, fmt.Errorf("ngram must be >= 1, got %d", opts.NGram)
	}
	if opts.Backend == "" {
		opts.Backend = BackendExact
	}
	if opts.ErrorRate == 0 {
		opts.ErrorRate = DefaultErrorRate
	}

	idx := &Index{n: opts.NGram, backend: opts.Backend, pow: 1}
	for i := 1; i < opts.NGram; i++ {
		idx.pow *= base
	}

	switch opts.Backend {
	case BackendExact:
		idx.set = exactSet{}
	case BackendBloom:
		if opts.ErrorRate <= 0 || opts.ErrorRate >= 1 {
			return nil, fmt.Errorf("bloom error rate must be within (0,1), got %v", opts.ErrorRate)
		}
		capacity := 0
		for _, r := range responses {
			if w := len(strings.Fields(r)) - opts.NGram + 1; w > 0 {
				capacity += w
			}
		}
		idx.set = newBloomSet(uint(capacity), opts.ErrorRate)
	default:
		return nil, fmt.Errorf("unknown leak index backend %q", opts.Backend)
	}

	for _, r := range responses {
		idx.eachWindow(r, func(h uint64) bool {
			idx.set.add(h)
			idx.windows++
			return true
		})
	}
	return idx, nil
}

func (x *Index) N() int          { return x.n }
func (x *Index) Backend() string { return x.backend }

// Windows is the number of windows fingerprinted, duplicates included.
func (x *Index) Windows() int { return x.windows }

// IsProbableLeak reports whether any n-token window of generated appears in
// the training responses.
func (x *Index) IsProbableLeak(generated string) bool {
	leak := false
	x.eachWindow(generated, func(h uint64) bool {
		if x.set.has(h) {
			leak = true
			return false
		}
		return true
	})
	return leak
}

var placeholderPattern = regexp.MustCompile(`\[(?:` + strings.Join([]string{
	scrub.CategoryEmail, scrub.CategoryAPIKey, scrub.CategorySSN, scrub.CategoryCreditCard,
	scrub.CategoryAddress, scrub.CategoryIPAddress, scrub.CategoryPhone, scrub.CategoryURL,
	"REDACTED", "NAME",
}, "|") + `)\]`)

// Check counts verbatim windows and looks for redaction placeholders, which
// only occur in output that reproduces scrubbed training text.
func (x *Index) Check(generated string) Verdict {
	var v Verdict
	x.eachWindow(generated, func(h uint64) bool {
		if x.set.has(h) {
			v.VerbatimWindows++
		}
		return true
	})
	v.Leak = v.VerbatimWindows > 0
	v.PlaceholderLeak = placeholderPattern.MatchString(generated)
	return v
}

// Sanitize returns FilteredResponse when generated fails Check, otherwise
// generated unchanged. The bool reports whether the text was replaced.
func (x *Index) Sanitize(generated string) (string, bool) {
	if x.Check(generated).Flagged() {
		return FilteredResponse, true
	}
	return generated, false
}

// eachWindow feeds the rolling hash of every n-token window of text to fn
// until fn returns false.
func (x *Index) eachWindow(text string, fn func(uint64) bool) {
	tokens := strings.Fields(text)
	if len(tokens) < x.n {
		return
	}
	hashes := make([]uint64, len(tokens))
	for i, tok := range tokens {
		hashes[i] = tokenHash(tok)
	}
	var h uint64
	for i := 0; i < x.n; i++ {
		h = h*base + hashes[i]
	}
	if !fn(h) {
		return
	}
	for i := x.n; i < len(tokens); i++ {
		h = (h-hashes[i-x.n]*x.pow)*base + hashes[i]
		if !fn(h) {
			return
		}
	}
}

func tokenHash(tok string) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(tok))
	return f.Sum64()
}
