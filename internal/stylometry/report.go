package stylometry

import (
	"context"
	"encoding/json"
	"math"
)

// Metric is a float that encodes NaN and infinities as JSON null.
type Metric float64

func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Metric(f)
	return nil
}

func (m Metric) Float() float64 { return float64(m) }

type StyleReport struct {
	Perplexity       Metric `json:"perplexity"`
	BurrowsDelta     Metric `json:"burrows_delta"`
	CosineSimilarity Metric `json:"cosine_similarity"`
	DeceptionRate    Metric `json:"deception_rate"`
	// RealAcceptanceRate is the share of reference samples the
	// discriminator judged real.
	RealAcceptanceRate Metric `json:"real_acceptance_rate"`
	// FeatureVector is the centroid of the generated samples.
	FeatureVector          FeatureVector `json:"feature_vector"`
	ReferenceFeatureVector FeatureVector `json:"reference_feature_vector"`
	FunctionWords          []string      `json:"function_words"`
	GeneratedSamples       int           `json:"generated_samples"`
	ReferenceSamples       int           `json:"reference_samples"`
}

type Options struct {
	FunctionWords []string
	// TopFunctionWords limits Burrows' Delta to the most frequent words of
	// FunctionWords in the reference corpus. 0 keeps the whole list.
	TopFunctionWords int
	LogProbs         LogProbSource
	Discriminator    Discriminator
}

// Evaluate scores generated samples against a reference corpus written by
// the persona. Metrics without the inputs they need are NaN.
func Evaluate(ctx context.Context, generated, reference []string, opts Options) StyleReport {
	words := opts.FunctionWords
	if len(words) == 0 {
		words = DefaultFunctionWords
	}
	words = TopFunctionWords(words, reference, opts.TopFunctionWords)

	report := StyleReport{
		Perplexity:         Metric(math.NaN()),
		BurrowsDelta:       Metric(math.NaN()),
		CosineSimilarity:   Metric(math.NaN()),
		DeceptionRate:      Metric(math.NaN()),
		RealAcceptanceRate: Metric(math.NaN()),
		FunctionWords:      words,
		GeneratedSamples:   len(generated),
		ReferenceSamples:   len(reference),
	}

	if opts.LogProbs != nil {
		report.Perplexity = Metric(CorpusPerplexity(ctx, opts.LogProbs, generated))
	}

	var deltaSum float64
	deltas := 0
	for _, g := range generated {
		if d := BurrowsDelta(g, reference, words); !math.IsNaN(d) {
			deltaSum += d
			deltas++
		}
	}
	if deltas > 0 {
		report.BurrowsDelta = Metric(deltaSum / float64(deltas))
	}

	genVecs := make([]FeatureVector, 0, len(generated))
	for _, g := range generated {
		genVecs = append(genVecs, Features(g))
	}
	refVecs := make([]FeatureVector, 0, len(reference))
	for _, r := range reference {
		refVecs = append(refVecs, Features(r))
	}
	report.FeatureVector = Centroid(genVecs)
	report.ReferenceFeatureVector = Centroid(refVecs)
	if len(genVecs) > 0 && len(refVecs) > 0 {
		report.CosineSimilarity = Metric(CosineSimilarity(report.FeatureVector, report.ReferenceFeatureVector))
	}

	if opts.Discriminator != nil {
		pairs := make([]Pair, len(generated))
		for i, g := range generated {
			pairs[i].Generated = g
			if i < len(reference) {
				pairs[i].Real = reference[i]
			}
		}
		res := Turing(ctx, pairs, opts.Discriminator)
		report.DeceptionRate = Metric(res.DeceptionRate)
		report.RealAcceptanceRate = Metric(res.RealAcceptance)
	}
	return report
}
