package split

import (
	"slices"
	"testing"
)

func TestApproximateMode(t *testing.T) {
	t.Run("exact shares", func(t *testing.T) {
		actual := approximateMode(newRand(0), []int{90, 10}, 50)
		if !slices.Equal(actual, []int{45, 5}) {
			t.Errorf("unexpected: %v", actual)
		}
	})

	t.Run("largest remainder first", func(t *testing.T) {
		// shares: 2.8, 1.2, 1.0 for 5 draws
		actual := approximateMode(newRand(0), []int{14, 6, 5}, 5)
		if !slices.Equal(actual, []int{3, 1, 1}) {
			t.Errorf("unexpected: %v", actual)
		}
	})

	t.Run("ties are broken at random but total is kept", func(t *testing.T) {
		// shares: 1.5, 1.5 for 3 draws
		for seed := int64(0); seed < 10; seed++ {
			actual := approximateMode(newRand(seed), []int{2, 2}, 3)
			if actual[0]+actual[1] != 3 {
				t.Fatalf("total is broken: %v", actual)
			}
			if !slices.Equal(actual, []int{2, 1}) && !slices.Equal(actual, []int{1, 2}) {
				t.Errorf("unexpected: %v", actual)
			}
		}
	})
}
