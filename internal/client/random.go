package client

import "math/rand"

const (
	RandomIntMin    = 1
	RandomIntMax    = 1000
	RandomDoubleMin = 1.0
	RandomDoubleMax = 100.0
)

// RandomInts returns n values drawn uniformly from [RandomIntMin, RandomIntMax].
func RandomInts(n int) []int64 {
	if n <= 0 {
		return []int64{}
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = RandomIntMin + rand.Int63n(RandomIntMax-RandomIntMin+1)
	}
	return out
}

// RandomDoubles returns n values drawn uniformly from [RandomDoubleMin, RandomDoubleMax).
func RandomDoubles(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = RandomDoubleMin + rand.Float64()*(RandomDoubleMax-RandomDoubleMin)
	}
	return out
}
