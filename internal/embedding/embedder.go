package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder turns text into a dense vector. Every call on one Embedder
// returns vectors of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)

// Hashing is a deterministic feature-hashing embedder. Word unigrams and
// bigrams are hashed into Dim signed buckets and the result is L2
// normalized. It needs no model and no network.
type Hashing struct {
	Dim int
}

func NewHashing(dim int) (*Hashing, error) {
	if dim < 1 {
		return nil, fmt.Errorf("embedding dimension must be >= 1, got %d", dim)
	}
	return &Hashing{Dim: dim}, nil
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.Dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *Hashing) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := sum % uint64(h.Dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
