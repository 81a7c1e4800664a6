package regression

import (
	"math"
	"math/rand/v2"
	"sort"
)

const (
	// DefaultTestFraction holds out one fifth of the rows.
	DefaultTestFraction = 0.2
	// DefaultSeed makes repeated runs produce the same partition.
	DefaultSeed uint64 = 42
)

// Split partitions row indices 0..n-1 into training and held-out subsets.
// The partition depends only on n, testFraction and seed. The test subset has
// ceil(n*testFraction) rows, capped so at least one row is left for training;
// with fewer than two rows everything goes to training.
// Both index lists are returned in ascending order.
func Split(n int, testFraction float64, seed uint64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}

	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest < 0 {
		nTest = 0
	}
	if nTest > n-1 {
		nTest = n - 1
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test
}

// Rows selects the rows of X at the given indices.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// Values selects the entries of y at the given indices.
func Values(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
