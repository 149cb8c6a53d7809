package list

// xLfSklNode is a data node of the lock-free skip list.
// The key and level never change after the node is published.
// The free list links are guarded by the free list lock.
type xLfSklNode[K any] struct {
	key         K
	level       int32
	next        []markableRef[xLfSklNode[K]]
	prevDeleted *xLfSklNode[K]
	nextDeleted *xLfSklNode[K]
}

func newXLfSklNode[K any](key K, level int32) *xLfSklNode[K] {
	return &xLfSklNode[K]{
		key:   key,
		level: level,
		next:  make([]markableRef[xLfSklNode[K]], level),
	}
}

// newXLfSklHead returns the header whose links are all (nil, unmarked).
func newXLfSklHead[K any]() *xLfSklNode[K] {
	var zero K
	return newXLfSklNode[K](zero, xSklMaxLevel)
}

// isDeleted reports whether the node is logically removed. Level 0 is
// the last level to be marked.
func (node *xLfSklNode[K]) isDeleted() bool {
	return node.next[0].isMarked()
}

// loadNextLive returns the first unmarked node after node at level 0.
func (node *xLfSklNode[K]) loadNextLive() *xLfSklNode[K] {
	curr := node.next[0].get()
	for curr != nil && curr.isDeleted() {
		curr = curr.next[0].get()
	}
	return curr
}
