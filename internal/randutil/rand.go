// Package randutil centralises how RNGs are seeded so every shuffle in the
// process derives a reproducible sequence from a single int64 seed.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// Seeded returns a *rand.Rand derived deterministically from seed. rand/v2's
// PCG wants two 64-bit seeds; deriving both here keeps call sites in sync.
func Seeded(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Auto picks a wall-clock seed and returns it alongside the rng so callers
// can log the seed for replay.
func Auto() (*rand.Rand, int64) {
	seed := time.Now().UnixNano()
	return Seeded(seed), seed
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
