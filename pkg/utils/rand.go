package utils

import (
	"math/rand"
	"time"
)

// RandSource is a seeded random number generator owned by a single repetition.
// It is not safe for concurrent use; each worker holds its own.
type RandSource struct {
	rng  *rand.Rand
	seed int64
}

// NewRandSource creates a new random source with the given seed.
// A zero seed is replaced by a time-based one.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed the source was created with
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// DeriveSeed mixes a base seed with a repetition index so that repetitions draw
// independent, reproducible streams. A zero base is replaced by a time-based one
// first; the result is never zero.
func DeriveSeed(base int64, repetition int) int64 {
	if base == 0 {
		base = time.Now().UnixNano()
	}
	z := uint64(base) + uint64(repetition+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	seed := int64(z >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
