package list

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/benz9527/xskl/lib/infra"
	"github.com/benz9527/xskl/xlog"
)

var _ XLockFreeSkl[uint8] = (*xLfSkl[uint8])(nil)

// xLfSkl is the lock-free skip list with erase.
// Insert is linearized at the level 0 link CAS, erase at the level 0 mark.
type xLfSkl[K any] struct {
	head      atomic.Pointer[xLfSklNode[K]]
	kcmp      infra.OrderedKeyComparator[K]
	hint      *levelHint
	rand      *xSklRand
	pool      *sklAuxPool[xLfSklNode[K]]
	allocator *sklNodeAllocator
	freeList  *xLfSklFreeList[K]
	len       atomic.Int64
	logger    xlog.XLogger
	stats     *xSklStats
}

func newXLfSkl[K any](cmp infra.OrderedKeyComparator[K], opts *xSklOptions[K]) *xLfSkl[K] {
	skl := &xLfSkl[K]{
		kcmp:      cmp,
		hint:      newLevelHint(),
		rand:      newXSklRand(opts.randSeed),
		pool:      newSklAuxPool[xLfSklNode[K]](),
		allocator: &sklNodeAllocator{limit: opts.nodeLimit},
		freeList:  newXLfSklFreeList[K](opts.freeListThreshold),
		logger:    opts.logger,
	}
	if opts.statsEnabled {
		skl.stats = newXSklStats(opts.statsName, skl)
	}
	return skl
}

func (skl *xLfSkl[K]) Init() bool {
	if skl.head.Load() != nil {
		return true
	}
	if skl.head.CompareAndSwap(nil, newXLfSklHead[K]()) && skl.logger != nil {
		skl.logger.Debug("x-skl lock-free initialized",
			zap.Int32("maxLevel", xSklMaxLevel),
			zap.Int("freeListThreshold", skl.freeList.threshold),
		)
	}
	return true
}

func (skl *xLfSkl[K]) loadHead() *xLfSklNode[K] {
	head := skl.head.Load()
	if head == nil {
		panic(ErrXSklNotInitialized)
	}
	return head
}

func (skl *xLfSkl[K]) Len() int64 {
	return skl.len.Load()
}

func (skl *xLfSkl[K]) Levels() int32 {
	return skl.hint.load()
}

func (skl *xLfSkl[K]) FreeListLen() int {
	return skl.freeList.len()
}

// find locates the predecessors and successors of key on each of the
// levels, unlinking every marked node it passes. It restarts from the
// head whenever a CAS fails or a predecessor is found deleted.
// The successors are unmarked at the time they were read.
func (skl *xLfSkl[K]) find(head *xLfSklNode[K], key K, levels int32, aux sklAux[xLfSklNode[K]]) bool {
retry:
	for {
		var (
			pred       = head
			curr, succ *xLfSklNode[K]
			marked     bool
			cmp        int64
		)
		for l := levels - 1; l >= 0; l-- {
			if curr, marked = pred.next[l].getMarked(); marked {
				continue retry
			}
			cmp = 1
			for curr != nil {
				succ, marked = curr.next[l].getMarked()
				for marked {
					if !pred.next[l].compareAndSwap(curr, succ, false, false) {
						skl.stats.IncreaseCASRetryCount()
						continue retry
					}
					if curr = succ; curr == nil {
						break
					}
					succ, marked = curr.next[l].getMarked()
				}
				if curr == nil {
					break
				}
				if cmp = skl.kcmp(key, curr.key); cmp > 0 {
					pred, curr = curr, succ
					continue
				}
				break
			}
			aux.storePred(l, pred)
			aux.storeSucc(l, curr)
		}
		return cmp == 0
	}
}

// findReadOnly is find without helping. Marked nodes are skipped and
// left for the writers to unlink.
func (skl *xLfSkl[K]) findReadOnly(head *xLfSklNode[K], key K, levels int32, aux sklAux[xLfSklNode[K]]) bool {
retry:
	for {
		var (
			pred       = head
			curr, succ *xLfSklNode[K]
			marked     bool
			cmp        int64
		)
		for l := levels - 1; l >= 0; l-- {
			if curr, marked = pred.next[l].getMarked(); marked {
				continue retry
			}
			cmp = 1
			for curr != nil {
				if succ, marked = curr.next[l].getMarked(); marked {
					curr = succ
					continue
				}
				if cmp = skl.kcmp(key, curr.key); cmp > 0 {
					pred, curr = curr, succ
					continue
				}
				break
			}
			aux.storePred(l, pred)
			aux.storeSucc(l, curr)
		}
		return cmp == 0
	}
}

func (skl *xLfSkl[K]) insert(head *xLfSklNode[K], key K) error {
	var (
		aux   = skl.pool.loadAux()
		level = skl.rand.randomLevel()
		node  *xLfSklNode[K]
	)
	defer skl.pool.releaseAux(aux)

	for {
		if skl.find(head, key, maxHeight(skl.hint.load(), level), aux) {
			if node != nil {
				// Never published.
				skl.allocator.release()
			}
			return ErrXSklKeyExists
		}
		if node == nil {
			if !skl.allocator.reserve() {
				return ErrXSklAllocFailed
			}
			node = newXLfSklNode[K](key, level)
		}
		for l := int32(0); l < level; l++ {
			node.next[l].store(aux.loadSucc(l), false)
		}
		// Counted before it is visible, an eraser may decrement it at once.
		skl.len.Add(1)
		if aux.loadPred(0).next[0].compareAndSwap(aux.loadSucc(0), node, false, false) {
			break
		}
		skl.len.Add(-1)
		skl.stats.IncreaseCASRetryCount()
	}

	// The key is visible now. Link the upper levels bottom-up.
	for l := int32(1); l < level; l++ {
		for {
			next, marked := node.next[l].getMarked()
			if marked {
				// Erased concurrently, help to unlink it.
				skl.find(head, key, maxHeight(skl.hint.load(), level), aux)
				return nil
			}
			if succ := aux.loadSucc(l); next != succ {
				if ok, observed := node.next[l].compareAndSwapObserved(next, succ, false, false); !ok && observed {
					skl.find(head, key, maxHeight(skl.hint.load(), level), aux)
					return nil
				}
			}
			if aux.loadPred(l).next[l].compareAndSwap(aux.loadSucc(l), node, false, false) {
				break
			}
			skl.stats.IncreaseCASRetryCount()
			skl.find(head, key, maxHeight(skl.hint.load(), level), aux)
		}
	}
	if node.next[level-1].isMarked() {
		skl.find(head, key, maxHeight(skl.hint.load(), level), aux)
	}
	if skl.hint.raise(level) && skl.logger != nil {
		skl.logger.Debug("x-skl level hint raised", zap.Int32("levels", level))
	}
	return nil
}

func (skl *xLfSkl[K]) erase(head *xLfSklNode[K], key K) error {
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	if !skl.find(head, key, skl.hint.load(), aux) {
		return ErrXSklNotFound
	}
	target := aux.loadSucc(0)
	// Mark from the top level down. Level 0 decides the winner.
	for l := target.level - 1; l >= 0; l-- {
		for {
			succ, marked := target.next[l].getMarked()
			if marked {
				if l == 0 {
					return ErrXSklNotFound
				}
				break
			}
			if target.next[l].compareAndSwap(succ, succ, false, true) {
				break
			}
			skl.stats.IncreaseCASRetryCount()
		}
	}
	skl.len.Add(-1)

	// Unlink at every level, then defer the reclamation.
	skl.find(head, key, maxHeight(skl.hint.load(), target.level), aux)
	skl.recycle(target)
	return nil
}

func (skl *xLfSkl[K]) recycle(node *xLfSklNode[K]) {
	evicted := skl.freeList.push(node)
	if evicted == nil {
		return
	}
	skl.allocator.release()
	skl.stats.IncreaseEvictedCount()
	if skl.logger != nil {
		skl.logger.Debug("x-skl free list evicted",
			zap.Int32("level", evicted.level),
			zap.Int64("liveNodes", skl.allocator.liveNodes()),
		)
	}
}

func (skl *xLfSkl[K]) InsertE(key K) error {
	head := skl.head.Load()
	if head == nil {
		return infra.WrapErrorStack(ErrXSklNotInitialized)
	}
	err := skl.insert(head, key)
	skl.stats.RecordInsert(err)
	if errors.Is(err, ErrXSklAllocFailed) && skl.logger != nil {
		skl.logger.Warn("x-skl node allocation failed",
			zap.Int64("limit", skl.allocator.limit),
			zap.Int64("liveNodes", skl.allocator.liveNodes()),
		)
	}
	return err
}

func (skl *xLfSkl[K]) Insert(key K) bool {
	err := skl.InsertE(key)
	if errors.Is(err, ErrXSklNotInitialized) {
		panic(err)
	}
	return err == nil
}

func (skl *xLfSkl[K]) EraseE(key K) error {
	head := skl.head.Load()
	if head == nil {
		return infra.WrapErrorStack(ErrXSklNotInitialized)
	}
	err := skl.erase(head, key)
	skl.stats.RecordErase(err)
	return err
}

func (skl *xLfSkl[K]) Erase(key K) bool {
	err := skl.EraseE(key)
	if errors.Is(err, ErrXSklNotInitialized) {
		panic(err)
	}
	return err == nil
}

func (skl *xLfSkl[K]) Contains(key K) bool {
	_, ok := skl.Find(key)
	return ok
}

func (skl *xLfSkl[K]) Find(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	if skl.findReadOnly(head, key, skl.hint.load(), aux) {
		return aux.loadSucc(0).key, true
	}
	var zero K
	return zero, false
}

func (skl *xLfSkl[K]) Foreach(action func(idx int64, key K) bool) {
	head := skl.loadHead()
	idx := int64(0)
	for node := head.loadNextLive(); node != nil; node = node.loadNextLive() {
		if !action(idx, node.key) {
			return
		}
		idx++
	}
}

func (skl *xLfSkl[K]) Iterator() *XSklIterator[K] {
	skl.loadHead()
	return newXSklIterator[K](skl)
}

func (skl *xLfSkl[K]) first() (K, bool) {
	if node := skl.loadHead().loadNextLive(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

// last descends like findReadOnly towards the tail. It restarts when the
// predecessor is marked before the next level is read.
func (skl *xLfSkl[K]) last() (K, bool) {
	head := skl.loadHead()
retry:
	for {
		pred := head
		for l := skl.hint.load() - 1; l >= 0; l-- {
			curr, marked := pred.next[l].getMarked()
			if marked {
				continue retry
			}
			for curr != nil {
				succ, marked := curr.next[l].getMarked()
				if !marked {
					pred = curr
				}
				curr = succ
			}
		}
		if pred == head {
			var zero K
			return zero, false
		}
		return pred.key, true
	}
}

func (skl *xLfSkl[K]) successor(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	var node *xLfSklNode[K]
	if skl.findReadOnly(head, key, skl.hint.load(), aux) {
		node = aux.loadSucc(0).loadNextLive()
	} else {
		node = aux.loadSucc(0)
	}
	if node == nil {
		var zero K
		return zero, false
	}
	return node.key, true
}

func (skl *xLfSkl[K]) predecessor(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	skl.findReadOnly(head, key, skl.hint.load(), aux)
	if pred := aux.loadPred(0); pred != head {
		return pred.key, true
	}
	var zero K
	return zero, false
}

func (skl *xLfSkl[K]) ceiling(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	skl.findReadOnly(head, key, skl.hint.load(), aux)
	if node := aux.loadSucc(0); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}
