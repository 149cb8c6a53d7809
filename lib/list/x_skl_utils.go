package list

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// markedRef is an immutable (reference, mark) pair. A new pair is boxed
// for every update, so both fields change in a single pointer CAS.
type markedRef[T any] struct {
	ref    *T
	marked bool
}

// markableRef is the atomic markable reference of a forward link.
// The zero value is (nil, unmarked).
type markableRef[T any] struct {
	pair atomic.Pointer[markedRef[T]]
}

func (m *markableRef[T]) getMarked() (*T, bool) {
	if p := m.pair.Load(); p != nil {
		return p.ref, p.marked
	}
	return nil, false
}

func (m *markableRef[T]) get() *T {
	ref, _ := m.getMarked()
	return ref
}

func (m *markableRef[T]) isMarked() bool {
	_, marked := m.getMarked()
	return marked
}

// store is a plain publication. It is only safe before the owner node is
// reachable by other goroutines.
func (m *markableRef[T]) store(ref *T, marked bool) {
	m.pair.Store(&markedRef[T]{ref: ref, marked: marked})
}

// mark sets the mark and keeps the reference. Not atomic with respect to
// a racing compareAndSwap.
func (m *markableRef[T]) mark() {
	m.store(m.get(), true)
}

func (m *markableRef[T]) unmark() {
	m.store(m.get(), false)
}

func (m *markableRef[T]) compareAndSwap(expectRef, newRef *T, expectMark, newMark bool) bool {
	ok, _ := m.compareAndSwapObserved(expectRef, newRef, expectMark, newMark)
	return ok
}

// compareAndSwapObserved returns the swap result and the mark observed at
// the time of the comparison.
func (m *markableRef[T]) compareAndSwapObserved(expectRef, newRef *T, expectMark, newMark bool) (bool, bool) {
	for {
		cur := m.pair.Load()
		var (
			curRef  *T
			curMark bool
		)
		if cur != nil {
			curRef, curMark = cur.ref, cur.marked
		}
		if curRef != expectRef || curMark != expectMark {
			return false, curMark
		}
		if newRef == curRef && newMark == curMark {
			return true, curMark
		}
		if m.pair.CompareAndSwap(cur, &markedRef[T]{ref: newRef, marked: newMark}) {
			return true, curMark
		}
		// The box was replaced. Compare the contents again.
	}
}

const cacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})

// levelHint is the monotonically non-decreasing number of levels in use.
// It occupies a whole cache line, it is read by every search.
type levelHint struct {
	_   [cacheLinePadSize - unsafe.Sizeof(*new(int32))]byte
	val atomic.Int32
	_   [cacheLinePadSize - unsafe.Sizeof(*new(int32))]byte
}

func (h *levelHint) load() int32 {
	return h.val.Load()
}

// raise reports whether this call lifted the hint to level.
func (h *levelHint) raise(level int32) bool {
	for {
		cur := h.val.Load()
		if cur >= level {
			return false
		}
		if h.val.CompareAndSwap(cur, level) {
			return true
		}
	}
}

func newLevelHint() *levelHint {
	h := &levelHint{}
	h.val.Store(1)
	return h
}

// sklAux is the search result buffer.
// [0, xSklMaxLevel) are the predecessors, [xSklMaxLevel, 2*xSklMaxLevel) the successors.
type sklAux[N any] []*N

func (aux sklAux[N]) loadPred(i int32) *N {
	return aux[i]
}

func (aux sklAux[N]) storePred(i int32, pred *N) {
	aux[i] = pred
}

func (aux sklAux[N]) loadSucc(i int32) *N {
	return aux[xSklMaxLevel+i]
}

func (aux sklAux[N]) storeSucc(i int32, succ *N) {
	aux[xSklMaxLevel+i] = succ
}

type sklAuxPool[N any] struct {
	auxPool *sync.Pool
}

func newSklAuxPool[N any]() *sklAuxPool[N] {
	return &sklAuxPool[N]{
		auxPool: &sync.Pool{
			New: func() any {
				return make(sklAux[N], 2*xSklMaxLevel)
			},
		},
	}
}

func (p *sklAuxPool[N]) loadAux() sklAux[N] {
	return p.auxPool.Get().(sklAux[N])
}

func (p *sklAuxPool[N]) releaseAux(aux sklAux[N]) {
	// Drop the references, the nodes may be reclaimed.
	clear(aux)
	p.auxPool.Put(aux)
}

// sklNodeAllocator does the data node accounting. The memory itself is
// managed by the runtime, a node is released once it can no longer be
// reached by any traversal.
type sklNodeAllocator struct {
	limit     int64 // <= 0 means unlimited
	live      atomic.Int64
	allocated atomic.Uint64
	released  atomic.Uint64
}

func (a *sklNodeAllocator) reserve() bool {
	for {
		cur := a.live.Load()
		if a.limit > 0 && cur >= a.limit {
			return false
		}
		if a.live.CompareAndSwap(cur, cur+1) {
			a.allocated.Add(1)
			return true
		}
	}
}

func (a *sklNodeAllocator) release() {
	a.live.Add(-1)
	a.released.Add(1)
}

func (a *sklNodeAllocator) liveNodes() int64 {
	return a.live.Load()
}
