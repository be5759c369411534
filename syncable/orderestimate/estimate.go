// Package orderestimate infers a minimal-ish move list that
// transforms one key or member sequence into another, for use when an
// ordered container's authoritative edit log lost the detail of which
// keys moved (for example, when reconciling order against a remote
// "cloud" sequence during a three-way merge).
package orderestimate

// Estimate computes an ordered list of keys such that: starting from
// src, for each listed key k in order, removing k from its current
// position and inserting it at k's position in dst reproduces dst
// exactly.
//
// hints names keys known a priori to be likely movers (for example,
// keys that also appear in a map's value-edits, since a value edit
// commonly travels with a reorder); seeding the move list with these
// keys first tends to produce a shorter, more intuitive move list for
// the common case of a handful of displaced keys, though the result
// is not guaranteed to be minimal.
//
// src and dst are expected to carry the same multiset of keys. Estimate
// panics only if their lengths differ; a key of dst that is missing
// from src is skipped rather than reported, and the moves returned then
// do not reproduce dst.
//
// Worst case is O(n^2), which is sufficient for the tens to low
// thousands of entries this estimator is intended for.
func Estimate[K comparable](src, dst []K, hints map[K]struct{}) []K {
	if len(src) != len(dst) {
		panic("orderestimate: src and dst must have the same length")
	}

	working := make([]K, len(src))
	copy(working, src)

	moves := make([]K, 0, len(src))

	applyIfDisplaced := func(key K, targetIndex int) {
		j := indexOf(working, key)
		if j == -1 || j == targetIndex {
			return
		}
		moveInPlace(working, j, targetIndex)
		moves = append(moves, key)
	}

	if len(hints) > 0 {
		for i, key := range dst {
			if _, hinted := hints[key]; hinted {
				applyIfDisplaced(key, i)
			}
		}
	}

	for i, key := range dst {
		applyIfDisplaced(key, i)
	}

	return moves
}

func indexOf[K comparable](seq []K, key K) int {
	for i, k := range seq {
		if k == key {
			return i
		}
	}
	return -1
}

// moveInPlace removes the element at index from and reinserts it at
// index to, shifting the intervening elements, mutating seq in
// place.
func moveInPlace[K comparable](seq []K, from, to int) {
	if from == to {
		return
	}
	v := seq[from]
	if from < to {
		copy(seq[from:to], seq[from+1:to+1])
	} else {
		copy(seq[to+1:from+1], seq[to:from])
	}
	seq[to] = v
}
