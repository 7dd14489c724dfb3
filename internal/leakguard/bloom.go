package leakguard

import (
	"math"

	"github.com/bits-and-blooms/bitset"
)

// windowSet stores window fingerprints.
type windowSet interface {
	add(h uint64)
	has(h uint64) bool
}

type exactSet map[uint64]struct{}

func (s exactSet) add(h uint64) { s[h] = struct{}{} }

func (s exactSet) has(h uint64) bool {
	_, ok := s[h]
	return ok
}

// bloomSet is a fixed-size Bloom filter over window fingerprints. It can
// report windows that were never added, never the reverse.
type bloomSet struct {
	m    uint
	k    uint
	bits *bitset.BitSet
}

func newBloomSet(capacity uint, errorRate float64) *bloomSet {
	if capacity == 0 {
		capacity = 1
	}
	m := optimalM(capacity, errorRate)
	return &bloomSet{m: m, k: optimalK(capacity, m), bits: bitset.New(m)}
}

func (b *bloomSet) add(h uint64) {
	h1, h2 := h, mix(h)
	for i := uint(0); i < b.k; i++ {
		b.bits.Set(uint((h1 + uint64(i)*h2) % uint64(b.m)))
	}
}

func (b *bloomSet) has(h uint64) bool {
	h1, h2 := h, mix(h)
	for i := uint(0); i < b.k; i++ {
		if !b.bits.Test(uint((h1 + uint64(i)*h2) % uint64(b.m))) {
			return false
		}
	}
	return true
}

// mix derives the second hash for double hashing (splitmix64 finalizer).
func mix(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h | 1
}

// m = -(n * ln p) / (ln 2)^2
func optimalM(n uint, p float64) uint {
	m := uint(math.Ceil(-(float64(n) * math.Log(p)) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		return 64
	}
	return m
}

// k = (m / n) * ln 2
func optimalK(n, m uint) uint {
	k := uint(math.Ceil(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		return 1
	}
	return k
}
