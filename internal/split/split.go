package split

import (
	"crypto/sha256"
	"encoding/binary"

	"twin_corpus/internal/corpus"
)

const (
	trainPercent = 80
	valPercent   = 10
)

// Assign maps a thread id to a split from the first 8 bytes of its SHA-256
// digest, so a thread always lands in the same split across runs and hosts.
func Assign(threadID string) corpus.Split {
	sum := sha256.Sum256([]byte(threadID))
	bucket := binary.BigEndian.Uint64(sum[:8]) % 100
	switch {
	case bucket < trainPercent:
		return corpus.SplitTrain
	case bucket < trainPercent+valPercent:
		return corpus.SplitVal
	default:
		return corpus.SplitTest
	}
}

// Apply stamps every unit with the split of its thread.
func Apply(units []corpus.TrainingUnit) []corpus.TrainingUnit {
	cache := map[string]corpus.Split{}
	for i := range units {
		id := units[i].ThreadID
		s, ok := cache[id]
		if !ok {
			s = Assign(id)
			cache[id] = s
		}
		units[i].Split = s
	}
	return units
}
