// Package split partitions rows into a train pool and a test pool.
//
// Partitions follow the semantics of the common shuffle split:
// the test pool size is ceil(fraction * n) or an absolute count,
// and stratified splits allocate rows per class by approximate mode.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

var (
	ErrInvalidSize    = errors.New("invalid test size")
	ErrEmptyDataset   = errors.New("dataset has no rows")
	ErrStratification = errors.New("cannot stratify")
)

// Partition holds row indices of each pool.
type Partition struct {
	Train []int
	Test  []int
}

// seed tweak for the second word of PCG state
const pcgStream uint64 = 0x9e3779b97f4a7c15

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), pcgStream))
}

// TrainTestSplit partitions row indices [0, n) into train and test pools.
//
// # Args
//
// - n: number of rows
//
// - size: size of test pool
//
// - seed: seed of the shuffle. Same arguments give the same Partition.
//
// - stratify: class label of each row, or nil not to stratify.
//
// # Returns
//
// - Partition
//
// - error: ErrEmptyDataset, ErrInvalidSize or ErrStratification.
func TrainTestSplit(n int, size Size, seed int64, stratify []string) (Partition, error) {
	nTrain, nTest, err := size.Resolve(n)
	if err != nil {
		return Partition{}, err
	}

	rng := newRand(seed)
	if stratify == nil {
		perm := rng.Perm(n)
		return Partition{
			Train: perm[nTest : nTest+nTrain],
			Test:  perm[:nTest],
		}, nil
	}

	if len(stratify) != n {
		return Partition{}, fmt.Errorf(
			"%w: %d labels for %d rows", ErrStratification, len(stratify), n,
		)
	}
	return stratified(rng, stratify, nTrain, nTest)
}

func stratified(rng *rand.Rand, labels []string, nTrain, nTest int) (Partition, error) {
	classIndex := map[string]int{}
	classes := []string{}
	for _, l := range labels {
		if _, ok := classIndex[l]; !ok {
			classIndex[l] = 0
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	for i, c := range classes {
		classIndex[c] = i
	}

	members := make([][]int, len(classes))
	for row, l := range labels {
		ci := classIndex[l]
		members[ci] = append(members[ci], row)
	}

	counts := make([]int, len(classes))
	for i, m := range members {
		if len(m) < 2 {
			return Partition{}, fmt.Errorf(
				"%w: the least populated class %q has only %d member, 2 or more are needed",
				ErrStratification, classes[i], len(m),
			)
		}
		counts[i] = len(m)
	}

	if nTrain < len(classes) {
		return Partition{}, fmt.Errorf(
			"%w: train size %d should be greater or equal to the number of classes (%d)",
			ErrStratification, nTrain, len(classes),
		)
	}
	if nTest < len(classes) {
		return Partition{}, fmt.Errorf(
			"%w: test size %d should be greater or equal to the number of classes (%d)",
			ErrStratification, nTest, len(classes),
		)
	}

	trainCounts := approximateMode(rng, counts, nTrain)
	remains := make([]int, len(counts))
	for i := range counts {
		remains[i] = counts[i] - trainCounts[i]
	}
	testCounts := approximateMode(rng, remains, nTest)

	train := make([]int, 0, nTrain)
	test := make([]int, 0, nTest)
	for i, m := range members {
		perm := rng.Perm(len(m))
		dealt := make([]int, len(m))
		for j, p := range perm {
			dealt[j] = m[p]
		}
		train = append(train, dealt[:trainCounts[i]]...)
		test = append(test, dealt[trainCounts[i]:trainCounts[i]+testCounts[i]]...)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return Partition{Train: train, Test: test}, nil
}

// approximateMode distributes draws over classes in proportion to counts.
//
// Each class gets the floor of its share first.
// The rest goes to classes with the largest fractional parts,
// and ties are broken at random.
func approximateMode(rng *rand.Rand, counts []int, draws int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}

	floored := make([]int, len(counts))
	remainder := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		continuous := float64(c) / float64(total) * float64(draws)
		f := math.Floor(continuous)
		floored[i] = int(f)
		remainder[i] = continuous - f
		assigned += floored[i]
	}

	need := draws - assigned
	if need <= 0 {
		return floored
	}

	values := make([]float64, 0, len(remainder))
	seen := map[float64]struct{}{}
	for _, r := range remainder {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		values = append(values, r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	for _, v := range values {
		inds := []int{}
		for i, r := range remainder {
			if r == v {
				inds = append(inds, i)
			}
		}
		add := min(len(inds), need)
		for _, p := range rng.Perm(len(inds))[:add] {
			floored[inds[p]] += 1
		}
		need -= add
		if need == 0 {
			break
		}
	}
	return floored
}
