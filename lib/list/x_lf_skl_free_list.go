package list

import (
	"sync"
)

// xLfSklFreeList holds the unlinked nodes, newest at the head.
// Once the threshold is reached, the oldest node (tail) is evicted.
type xLfSklFreeList[K any] struct {
	lock      sync.Mutex
	head      *xLfSklNode[K]
	tail      *xLfSklNode[K]
	count     int
	threshold int
}

func newXLfSklFreeList[K any](threshold int) *xLfSklFreeList[K] {
	if threshold <= 0 {
		threshold = xSklFreeListThreshold
	}
	return &xLfSklFreeList[K]{
		threshold: threshold,
	}
}

// push adds the node at the head and returns the evicted node, if any.
func (fl *xLfSklFreeList[K]) push(node *xLfSklNode[K]) (evicted *xLfSklNode[K]) {
	fl.lock.Lock()
	defer fl.lock.Unlock()

	node.prevDeleted, node.nextDeleted = nil, fl.head
	if fl.head != nil {
		fl.head.prevDeleted = node
	} else {
		fl.tail = node
	}
	fl.head = node

	if fl.count < fl.threshold {
		fl.count++
		return nil
	}
	evicted = fl.tail
	fl.tail = evicted.prevDeleted
	fl.tail.nextDeleted = nil
	evicted.prevDeleted = nil
	return evicted
}

func (fl *xLfSklFreeList[K]) len() int {
	fl.lock.Lock()
	defer fl.lock.Unlock()
	return fl.count
}

// foreach visits from the newest to the oldest.
func (fl *xLfSklFreeList[K]) foreach(action func(node *xLfSklNode[K]) bool) {
	fl.lock.Lock()
	defer fl.lock.Unlock()
	for node := fl.head; node != nil; node = node.nextDeleted {
		if !action(node) {
			return
		}
	}
}
