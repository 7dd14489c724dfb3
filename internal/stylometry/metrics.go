package stylometry

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"
)

// LogProbSource returns per-token natural-log probabilities of text under a
// language model.
type LogProbSource interface {
	LogProbs(ctx context.Context, text string) ([]float64, error)
}

// Perplexity is exp of the mean negative log-probability, NaN for no tokens.
func Perplexity(logProbs []float64) float64 {
	if len(logProbs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, lp := range logProbs {
		sum -= lp
	}
	return math.Exp(sum / float64(len(logProbs)))
}

// CorpusPerplexity pools the tokens of every sample the source could score.
func CorpusPerplexity(ctx context.Context, src LogProbSource, samples []string) float64 {
	var all []float64
	for _, s := range samples {
		lps, err := src.LogProbs(ctx, s)
		if err != nil {
			continue
		}
		all = append(all, lps...)
	}
	return Perplexity(all)
}

//go:embed function_words.json
var functionWordsJSON []byte

// DefaultFunctionWords are frequent English function words.
var DefaultFunctionWords = mustLoadFunctionWords()

func mustLoadFunctionWords() []string {
	var words []string
	if err := json.Unmarshal(functionWordsJSON, &words); err != nil {
		panic("stylometry: invalid embedded function word list: " + err.Error())
	}
	return words
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// relativeFrequencies returns the share of tokens equal to each word.
func relativeFrequencies(text string, words []string) ([]float64, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, false
	}
	idx := make(map[string]int, len(words))
	for i, w := range words {
		idx[w] = i
	}
	out := make([]float64, len(words))
	for _, t := range tokens {
		if i, ok := idx[t]; ok {
			out[i]++
		}
	}
	for i := range out {
		out[i] /= float64(len(tokens))
	}
	return out, true
}

// TopFunctionWords keeps the n words of list most frequent across texts.
// Ties keep list order.
func TopFunctionWords(list []string, texts []string, n int) []string {
	if n <= 0 || n >= len(list) {
		return list
	}
	counts := make(map[string]int, len(list))
	for _, w := range list {
		counts[w] = 0
	}
	for _, text := range texts {
		for _, t := range tokenize(text) {
			if _, ok := counts[t]; ok {
				counts[t]++
			}
		}
	}
	ranked := append([]string(nil), list...)
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	return ranked[:n]
}

// BurrowsDelta is the mean absolute difference between the candidate's
// z-scored function-word frequencies and the reference centroid. Means and
// standard deviations come from the reference texts; features with zero
// deviation are skipped. When every feature is skipped the result is 0 if
// the candidate matches the centroid exactly and NaN otherwise. Empty
// candidate or reference yields NaN.
func BurrowsDelta(candidate string, reference []string, functionWords []string) float64 {
	if len(functionWords) == 0 {
		functionWords = DefaultFunctionWords
	}
	cand, ok := relativeFrequencies(candidate, functionWords)
	if !ok {
		return math.NaN()
	}
	var refs [][]float64
	for _, r := range reference {
		if f, ok := relativeFrequencies(r, functionWords); ok {
			refs = append(refs, f)
		}
	}
	if len(refs) == 0 {
		return math.NaN()
	}

	n := float64(len(refs))
	var sum float64
	used := 0
	identical := true
	for j := range functionWords {
		var mean float64
		for _, f := range refs {
			mean += f[j]
		}
		mean /= n
		var variance float64
		for _, f := range refs {
			d := f[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / n)
		if math.Abs(cand[j]-mean) > 1e-12 {
			identical = false
		}
		if sd == 0 {
			continue
		}
		// z-score of the centroid is 0 by construction
		sum += math.Abs((cand[j] - mean) / sd)
		used++
	}
	if used == 0 {
		if identical {
			return 0
		}
		return math.NaN()
	}
	return sum / float64(used)
}
