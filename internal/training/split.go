package training

import (
	"fmt"
	"math/rand"
)

// permutation is the seeded row order every split derives from.
func permutation(n int, seed int64) []int {
	return rand.New(rand.NewSource(seed)).Perm(n)
}

// Split shuffles ds with seed and moves the holdout fraction (rounded, at least
// one row) into the second dataset.
func Split(ds Dataset, holdout float64, seed int64) (train, test Dataset, err error) {
	if holdout <= 0 || holdout >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("holdout must be in (0, 1), got %v", holdout)
	}
	n := ds.Len()
	nTest := int(float64(n)*holdout + 0.5)
	if nTest < 1 {
		nTest = 1
	}
	if n-nTest < 2 {
		return Dataset{}, Dataset{}, fmt.Errorf("not enough rows (%d) for a %.0f%% holdout", n, holdout*100)
	}
	perm := permutation(n, seed)
	return ds.subset(perm[nTest:]), ds.subset(perm[:nTest]), nil
}

// Folds partitions 0..n-1 into k contiguous validation folds whose sizes differ
// by at most one. The caller shuffles the data beforehand.
func Folds(n, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("folds must be at least 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("not enough rows (%d) for %d folds", n, k)
	}
	folds := make([][]int, k)
	start := 0
	for f := range k {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds[f] = fold
		start += size
	}
	return folds, nil
}

// complement returns 0..n-1 without the indices in fold (which is contiguous).
func complement(n int, fold []int) []int {
	out := make([]int, 0, n-len(fold))
	lo, hi := fold[0], fold[len(fold)-1]
	for i := range n {
		if i < lo || i > hi {
			out = append(out, i)
		}
	}
	return out
}
