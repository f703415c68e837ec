package pipeline

import (
	"hash/fnv"
	"math/rand/v2"
)

// RandSource draws the random numbers used for clip selection.
type RandSource interface {
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// SourceFactory returns the random source for one job.
type SourceFactory func(jobID string) RandSource

// SeededSource is reproducible: the same job id always yields the same draws.
func SeededSource(jobID string) RandSource {
	h := fnv.New64a()
	_, _ = h.Write([]byte(jobID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type entropySource struct{}

func (entropySource) IntN(n int) int {
	return rand.IntN(n)
}

// EntropySource ignores the job id.
func EntropySource(string) RandSource {
	return entropySource{}
}
