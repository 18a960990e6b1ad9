package coordinator

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/danmuck/darrayctl/internal/protocol"
)

const (
	OpExample1 = "example1"
	OpExample2 = "example2"
)

var (
	ErrUnknownOperation  = errors.New("coordinator: unknown operation")
	ErrOperationDataType = errors.New("coordinator: operation does not apply to array data type")
)

// example1 maps a double to ((sin x + cos x)^2) / (sqrt|x| + 1).
func example1(x float64) float64 {
	s := math.Sin(x) + math.Cos(x)
	return (s * s) / (math.Sqrt(math.Abs(x)) + 1)
}

// example2 maps x to int(x*ln x) mod 7 when x is a multiple of 3 or within
// [500, 1000]; other values pass through. Non-positive values have no
// logarithm and also pass through.
func example2(x int64) int64 {
	if x <= 0 {
		return x
	}
	if x%3 != 0 && (x < 500 || x > 1000) {
		return x
	}
	v := float64(x)
	return int64(math.Mod(v*math.Log(v), 7))
}

// requiredDataType reports which arrays op runs over.
func requiredDataType(op string) (protocol.DataType, error) {
	switch op {
	case OpExample1:
		return protocol.DataTypeDouble, nil
	case OpExample2:
		return protocol.DataTypeInt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func applyDoubles(in []float64, workers int) []float64 {
	out := make([]float64, len(in))
	parallel(len(in), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = example1(in[i])
		}
	})
	return out
}

func applyInts(in []int64, workers int) []int64 {
	out := make([]int64, len(in))
	parallel(len(in), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = example2(in[i])
		}
	})
	return out
}

// parallel splits [0, n) into at most workers contiguous chunks, the last one
// taking the remainder, and runs fn on each concurrently.
func parallel(n, workers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	chunk := n / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if w == workers-1 {
			hi = n
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}
