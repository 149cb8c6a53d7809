package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	Signed | Unsigned
}

// Float is a constraint that permits any floating-point type.
type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// OrderedKeyComparator is a three-way comparator over any key type.
// Assume i is the searched (or new) key and j is the key already stored.
//  1. i == j, return 0.
//  2. i > j, return a positive number, turn to right part.
//  3. i < j, return a negative number, turn to left part.
//
// A comparator may treat distinct keys as equal (i.e. prefix matching),
// the index stores the first inserted key of such an equivalence class.
type OrderedKeyComparator[K any] func(i, j K) int64

// OrderedKeyCompare is the natural order comparator of the built-in ordered keys.
// NaN floats are ordered before every other value, so the order stays total.
func OrderedKeyCompare[K OrderedKey](i, j K) int64 {
	iNaN, jNaN := i != i, j != j
	switch {
	case iNaN && jNaN:
		return 0
	case iNaN:
		return -1
	case jNaN:
		return 1
	case i < j:
		return -1
	case i > j:
		return 1
	}
	return 0
}

// ReverseOrderedKeyCompare orders the built-in keys from the largest to the smallest.
func ReverseOrderedKeyCompare[K OrderedKey](i, j K) int64 {
	return OrderedKeyCompare[K](j, i)
}
