package split_test

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/split"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/try"
)

func TestParseSize(t *testing.T) {
	type Then struct {
		fraction bool
		str      string
		err      error
	}
	theory := func(v float64, then Then) func(*testing.T) {
		return func(t *testing.T) {
			testee, err := split.ParseSize(v)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testee.IsFraction() != then.fraction {
				t.Errorf("IsFraction: actual = %v, expected = %v", testee.IsFraction(), then.fraction)
			}
			if testee.String() != then.str {
				t.Errorf("String: actual = %s, expected = %s", testee.String(), then.str)
			}
		}
	}

	t.Run("0.2 is fraction", theory(0.2, Then{fraction: true, str: "0.2"}))
	t.Run("1 is count", theory(1, Then{fraction: false, str: "1"}))
	t.Run("30 is count", theory(30, Then{fraction: false, str: "30"}))
	t.Run("0 is invalid", theory(0, Then{err: split.ErrInvalidSize}))
	t.Run("negative is invalid", theory(-0.5, Then{err: split.ErrInvalidSize}))
	t.Run("1.5 is invalid", theory(1.5, Then{err: split.ErrInvalidSize}))
	t.Run("NaN is invalid", theory(math.NaN(), Then{err: split.ErrInvalidSize}))
	t.Run("Inf is invalid", theory(math.Inf(1), Then{err: split.ErrInvalidSize}))
}

func TestResolve(t *testing.T) {
	type When struct {
		size float64
		n    int
	}
	type Then struct {
		nTrain int
		nTest  int
		err    error
	}
	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			size := try.To(split.ParseSize(when.size)).OrFatal(t)
			nTrain, nTest, err := size.Resolve(when.n)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if nTrain != then.nTrain || nTest != then.nTest {
				t.Errorf(
					"actual = (%d, %d), expected = (%d, %d)",
					nTrain, nTest, then.nTrain, then.nTest,
				)
			}
		}
	}

	t.Run("fraction is rounded up", theory(When{size: 0.25, n: 10}, Then{nTrain: 7, nTest: 3}))
	t.Run("exact fraction", theory(When{size: 0.2, n: 100}, Then{nTrain: 80, nTest: 20}))
	t.Run("count", theory(When{size: 3, n: 10}, Then{nTrain: 7, nTest: 3}))
	t.Run("count as many as rows", theory(When{size: 10, n: 10}, Then{err: split.ErrInvalidSize}))
	t.Run("fraction leaving no train row", theory(When{size: 0.9, n: 1}, Then{err: split.ErrInvalidSize}))
	t.Run("no rows", theory(When{size: 0.2, n: 0}, Then{err: split.ErrEmptyDataset}))
}

func assertPartition(t *testing.T, n int, p split.Partition) {
	t.Helper()
	seen := map[int]int{}
	for _, i := range p.Train {
		seen[i] += 1
	}
	for _, i := range p.Test {
		seen[i] += 1
	}
	if len(p.Train)+len(p.Test) != n {
		t.Errorf("size: %d + %d != %d", len(p.Train), len(p.Test), n)
	}
	for i := 0; i < n; i++ {
		if seen[i] != 1 {
			t.Errorf("row %d appears %d times", i, seen[i])
		}
	}
}

func TestTrainTestSplit_Unstratified(t *testing.T) {
	size := try.To(split.Fraction(0.2)).OrFatal(t)

	p := try.To(split.TrainTestSplit(100, size, 42, nil)).OrFatal(t)
	assertPartition(t, 100, p)
	if len(p.Train) != 80 || len(p.Test) != 20 {
		t.Errorf("unexpected sizes: train = %d, test = %d", len(p.Train), len(p.Test))
	}

	t.Run("same seed gives same partition", func(t *testing.T) {
		again := try.To(split.TrainTestSplit(100, size, 42, nil)).OrFatal(t)
		if !slices.Equal(p.Train, again.Train) || !slices.Equal(p.Test, again.Test) {
			t.Errorf("partitions differ:\n%v\n%v", p.Test, again.Test)
		}
	})

	t.Run("other seed gives other partition", func(t *testing.T) {
		other := try.To(split.TrainTestSplit(100, size, 7, nil)).OrFatal(t)
		if slices.Equal(p.Test, other.Test) {
			t.Errorf("partitions are same: %v", p.Test)
		}
	})

	t.Run("rows are shuffled", func(t *testing.T) {
		sorted := slices.Clone(p.Test)
		slices.Sort(sorted)
		if slices.Equal(sorted, seq(0, 20)) {
			t.Errorf("test pool is not shuffled: %v", p.Test)
		}
	})
}

func seq(from, to int) []int {
	ret := []int{}
	for i := from; i < to; i++ {
		ret = append(ret, i)
	}
	return ret
}

func labels(counts ...any) []string {
	ret := []string{}
	for i := 0; i < len(counts); i += 2 {
		l := counts[i].(string)
		c := counts[i+1].(int)
		for j := 0; j < c; j++ {
			ret = append(ret, l)
		}
	}
	return ret
}

func countBy(ls []string, indices []int) map[string]int {
	ret := map[string]int{}
	for _, i := range indices {
		ret[ls[i]] += 1
	}
	return ret
}

func TestTrainTestSplit_Stratified(t *testing.T) {
	type When struct {
		labels []string
		size   float64
		seed   int64
	}
	type Then struct {
		train map[string]int
		test  map[string]int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			size := try.To(split.ParseSize(when.size)).OrFatal(t)
			p, err := split.TrainTestSplit(len(when.labels), size, when.seed, when.labels)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertPartition(t, len(when.labels), p)

			if actual := countBy(when.labels, p.Train); fmt.Sprint(actual) != fmt.Sprint(then.train) {
				t.Errorf("train: actual = %v, expected = %v", actual, then.train)
			}
			if actual := countBy(when.labels, p.Test); fmt.Sprint(actual) != fmt.Sprint(then.test) {
				t.Errorf("test: actual = %v, expected = %v", actual, then.test)
			}
		}
	}

	t.Run("90/10 halves keep ratio", theory(
		When{labels: labels("a", 90, "b", 10), size: 0.5, seed: 42},
		Then{
			train: map[string]int{"a": 45, "b": 5},
			test:  map[string]int{"a": 45, "b": 5},
		},
	))

	t.Run("interleaved labels", theory(
		When{
			labels: func() []string {
				ls := []string{}
				for i := 0; i < 100; i++ {
					ls = append(ls, []string{"x", "y", "z", "z"}[i%4])
				}
				return ls
			}(),
			size: 0.2,
			seed: 1,
		},
		Then{
			train: map[string]int{"x": 20, "y": 20, "z": 40},
			test:  map[string]int{"x": 5, "y": 5, "z": 10},
		},
	))

	t.Run("count size", theory(
		When{labels: labels("a", 6, "b", 4), size: 5, seed: 3},
		Then{
			train: map[string]int{"a": 3, "b": 2},
			test:  map[string]int{"a": 3, "b": 2},
		},
	))

	t.Run("stratified split is deterministic", func(t *testing.T) {
		ls := labels("a", 33, "b", 17, "c", 11)
		size := try.To(split.Fraction(0.3)).OrFatal(t)
		p1 := try.To(split.TrainTestSplit(len(ls), size, 42, ls)).OrFatal(t)
		p2 := try.To(split.TrainTestSplit(len(ls), size, 42, ls)).OrFatal(t)
		if !slices.Equal(p1.Train, p2.Train) || !slices.Equal(p1.Test, p2.Test) {
			t.Error("partitions differ")
		}
		assertPartition(t, len(ls), p1)

		// nTest = ceil(0.3 * 61) = 19
		if len(p1.Test) != 19 {
			t.Errorf("unexpected test size: %d", len(p1.Test))
		}
		for class, total := range map[string]int{"a": 33, "b": 17, "c": 11} {
			inTest := countBy(ls, p1.Test)[class]
			share := float64(total) * 19 / 61
			if math.Abs(float64(inTest)-share) >= 1 {
				t.Errorf("class %s: %d in test, share is %f", class, inTest, share)
			}
		}
	})
}

func TestTrainTestSplit_StratificationErrors(t *testing.T) {
	theory := func(ls []string, size float64) func(*testing.T) {
		return func(t *testing.T) {
			s := try.To(split.ParseSize(size)).OrFatal(t)
			_, err := split.TrainTestSplit(len(ls), s, 42, ls)
			if !errors.Is(err, split.ErrStratification) {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	t.Run("a class with single member", theory(labels("a", 10, "b", 1), 0.3))
	t.Run("test pool smaller than classes", theory(labels("a", 5, "b", 5, "c", 5), 2))
	t.Run("train pool smaller than classes", theory(labels("a", 2, "b", 2, "c", 2), 4))

	t.Run("labels and rows mismatch", func(t *testing.T) {
		s := try.To(split.Fraction(0.5)).OrFatal(t)
		_, err := split.TrainTestSplit(4, s, 42, []string{"a", "b"})
		if !errors.Is(err, split.ErrStratification) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
