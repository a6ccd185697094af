package cmp

// check 2 slices has same content but its ordering.
//
// In other words, this function answers equality of two bags (or multi-sets).
//
// example:
//
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a"})            // ==> true
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a", "z"})       // ==> false
//	SliceContentEq([]string{"a", "b", "c", "c"}, []string{"a", "b", "c"})       // ==> false. left has 2 "c"s but right has only 1.
func SliceContentEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[T]int, len(a))
	for _, v := range a {
		count[v] += 1
	}
	for _, v := range b {
		if count[v] == 0 {
			return false
		}
		count[v] -= 1
	}
	return true
}

// check 2 slice has equivarent content but its ordering.
//
// args:
//   - a []S, b []T: slices to be compaired
//   - equiv: predicator says that two elements are equiverent or not.
//
// return:
//
//	true when slices `a` and `b` are equiverent (as bag).
//	otherwise, false.
func SliceContentEqWith[S, T any](a []S, b []T, equiv func(S, T) bool) bool {
	if len(a) != len(b) {
		return false
	}

	rest := make([]T, len(b))
	copy(rest, b)

NEXT_A:
	for _, va := range a {
		for i, vb := range rest {
			if equiv(va, vb) {
				rest = append(rest[:i], rest[i+1:]...)
				continue NEXT_A
			}
		}
		return false
	}

	return len(rest) == 0
}

// SliceEqualUnordered is SliceContentEqWith for types having Equal method.
func SliceEqualUnordered[T interface{ Equal(T) bool }](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x.Equal(y) })
}

// SliceSubset checks every element of b is found in a, as a bag.
func SliceSubset[T comparable](a, b []T) bool {
	count := make(map[T]int, len(a))
	for _, v := range a {
		count[v] += 1
	}
	for _, v := range b {
		if count[v] == 0 {
			return false
		}
		count[v] -= 1
	}
	return true
}
