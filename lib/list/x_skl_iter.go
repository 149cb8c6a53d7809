package list

// XSklIterator is a cursor holding a copy of the current key only.
// Every step re-searches the list, so the cursor stays usable while the
// key under it is erased. The iteration is weakly consistent: keys
// inserted or erased concurrently may or may not be observed.
type XSklIterator[K any] struct {
	cursor sklCursor[K]
	key    K
	valid  bool
}

func newXSklIterator[K any](cursor sklCursor[K]) *XSklIterator[K] {
	return &XSklIterator[K]{cursor: cursor}
}

func (it *XSklIterator[K]) reposition(key K, ok bool) bool {
	if !ok {
		var zero K
		it.key, it.valid = zero, false
		return false
	}
	it.key, it.valid = key, true
	return true
}

// Begin moves to the smallest live key.
func (it *XSklIterator[K]) Begin() bool {
	return it.reposition(it.cursor.first())
}

// End moves to the largest live key.
func (it *XSklIterator[K]) End() bool {
	return it.reposition(it.cursor.last())
}

// Seek moves to the smallest live key >= key.
func (it *XSklIterator[K]) Seek(key K) bool {
	return it.reposition(it.cursor.ceiling(key))
}

// Next moves to the smallest live key > the current key.
func (it *XSklIterator[K]) Next() bool {
	if !it.valid {
		return false
	}
	return it.reposition(it.cursor.successor(it.key))
}

// Prev moves to the largest live key < the current key.
func (it *XSklIterator[K]) Prev() bool {
	if !it.valid {
		return false
	}
	return it.reposition(it.cursor.predecessor(it.key))
}

func (it *XSklIterator[K]) Valid() bool {
	return it.valid
}

func (it *XSklIterator[K]) Key() K {
	return it.key
}
