package stylometry

import (
	"context"
	"errors"
	"math"
)

// RealThreshold is the discriminator score at or above which a sample is
// judged to be written by the real author.
const RealThreshold = 0.5

// Pair is one real sample and one generated sample shown to a discriminator.
// Real may be empty when the reference has fewer samples than the
// generated set.
type Pair struct {
	Real      string `json:"real"`
	Generated string `json:"generated"`
}

// Discriminator scores how likely a text is to be real, on a continuous
// scale where RealThreshold separates the two verdicts.
type Discriminator interface {
	Score(ctx context.Context, text string) (float64, error)
}

// TuringResult is the outcome of showing a discriminator the mixed set of
// real and generated samples.
type TuringResult struct {
	// DeceptionRate is the share of generated samples judged real.
	DeceptionRate float64
	// RealAcceptance is the share of real samples judged real.
	RealAcceptance float64
}

// Turing scores both sides of every pair. Samples that fail to score are
// left out of their rate; a rate with nothing scored is NaN.
func Turing(ctx context.Context, pairs []Pair, d Discriminator) TuringResult {
	var gen, ref judged
	for _, p := range pairs {
		gen.add(ctx, d, p.Generated)
		if p.Real != "" {
			ref.add(ctx, d, p.Real)
		}
	}
	return TuringResult{DeceptionRate: gen.rate(), RealAcceptance: ref.rate()}
}

// DeceptionRate is the share of generated samples the discriminator judged
// real.
func DeceptionRate(ctx context.Context, pairs []Pair, d Discriminator) float64 {
	return Turing(ctx, pairs, d).DeceptionRate
}

type judged struct {
	scored, asReal int
}

func (j *judged) add(ctx context.Context, d Discriminator, text string) {
	s, err := d.Score(ctx, text)
	if err != nil || math.IsNaN(s) {
		return
	}
	j.scored++
	if s >= RealThreshold {
		j.asReal++
	}
}

func (j judged) rate() float64 {
	if j.scored == 0 {
		return math.NaN()
	}
	return float64(j.asReal) / float64(j.scored)
}

var errNoStyleSignal = errors.New("text has no style features")

// FeatureDiscriminator is a proxy discriminator: the score is the feature
// cosine similarity to the reference centroid, mapped onto [0, 1].
type FeatureDiscriminator struct {
	centroid FeatureVector
}

func NewFeatureDiscriminator(reference []string) *FeatureDiscriminator {
	vecs := make([]FeatureVector, 0, len(reference))
	for _, r := range reference {
		vecs = append(vecs, Features(r))
	}
	return &FeatureDiscriminator{centroid: Centroid(vecs)}
}

func (d *FeatureDiscriminator) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := CosineSimilarity(Features(text), d.centroid)
	if math.IsNaN(s) {
		return 0, errNoStyleSignal
	}
	return (s + 1) / 2, nil
}
