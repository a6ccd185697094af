package cmp_test

import (
	"fmt"
	"testing"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/cmp"
)

func TestSliceContentEq(t *testing.T) {
	type when struct {
		a []string
		b []string
	}
	type testcase struct {
		when     when
		expected bool
	}
	for _, testcase := range []testcase{
		{when: when{a: []string{"a", "b", "c"}, b: []string{"a", "b", "c"}}, expected: true},
		{when: when{a: []string{"a", "b", "c"}, b: []string{"a", "b", "d"}}, expected: false},
		{when: when{a: []string{"a", "b", "c"}, b: []string{"c", "a", "b"}}, expected: true},
		{when: when{a: []string{"a", "b", "c"}, b: []string{"a", "b", "c", "c"}}, expected: false},
		{when: when{a: []string{"c", "a", "b", "c"}, b: []string{"a", "b", "c", "c"}}, expected: true},
	} {
		a := testcase.when.a
		b := testcase.when.b
		expected := testcase.expected
		t.Run(
			fmt.Sprintf("SliceContentEq(%#v, %#v) should be %v, commutative", a, b, expected),
			func(t *testing.T) {
				if cmp.SliceContentEq(a, b) != expected {
					t.Errorf("SliceContentEq(%#v, %#v) != %v", a, b, expected)
				}
				if cmp.SliceContentEq(b, a) != expected {
					t.Errorf("SliceContentEq(%#v, %#v) != %v", b, a, expected)
				}
				eq := func(x, y string) bool { return x == y }
				if cmp.SliceContentEqWith(a, b, eq) != expected {
					t.Errorf("SliceContentEqWith(%#v, %#v) != %v", a, b, expected)
				}
			},
		)
	}
}

func TestSliceSubset(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b []int
		then bool
	}{
		"empty is subset of anything": {a: []int{1, 2}, b: []int{}, then: true},
		"proper subset":               {a: []int{1, 2, 3}, b: []int{3, 1}, then: true},
		"multiplicity matters":        {a: []int{1, 2, 3}, b: []int{1, 1}, then: false},
		"not subset":                  {a: []int{1, 2, 3}, b: []int{4}, then: false},
	} {
		t.Run(name, func(t *testing.T) {
			if got := cmp.SliceSubset(testcase.a, testcase.b); got != testcase.then {
				t.Errorf("SliceSubset(%v, %v) = %v", testcase.a, testcase.b, got)
			}
		})
	}
}
