package list

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/benz9527/xskl/lib/infra"
	"github.com/benz9527/xskl/xlog"
)

var _ XInsertOnlySkl[uint8] = (*xIoSkl[uint8])(nil)

// xIoSklNode is a data node of the insert-only skip list.
// A node is never unlinked, so the links carry no mark.
type xIoSklNode[K any] struct {
	key   K
	level int32
	next  []atomic.Pointer[xIoSklNode[K]]
}

func newXIoSklNode[K any](key K, level int32) *xIoSklNode[K] {
	return &xIoSklNode[K]{
		key:   key,
		level: level,
		next:  make([]atomic.Pointer[xIoSklNode[K]], level),
	}
}

// xIoSkl is the insert-only skip list. Every search is wait-free, the
// insert is lock-free.
type xIoSkl[K any] struct {
	head      atomic.Pointer[xIoSklNode[K]]
	kcmp      infra.OrderedKeyComparator[K]
	hint      *levelHint
	rand      *xSklRand
	pool      *sklAuxPool[xIoSklNode[K]]
	allocator *sklNodeAllocator
	len       atomic.Int64
	logger    xlog.XLogger
	stats     *xSklStats
}

func newXIoSkl[K any](cmp infra.OrderedKeyComparator[K], opts *xSklOptions[K]) *xIoSkl[K] {
	skl := &xIoSkl[K]{
		kcmp:      cmp,
		hint:      newLevelHint(),
		rand:      newXSklRand(opts.randSeed),
		pool:      newSklAuxPool[xIoSklNode[K]](),
		allocator: &sklNodeAllocator{limit: opts.nodeLimit},
		logger:    opts.logger,
	}
	if opts.statsEnabled {
		skl.stats = newXSklStats(opts.statsName, skl)
	}
	return skl
}

func (skl *xIoSkl[K]) Init() bool {
	if skl.head.Load() != nil {
		return true
	}
	var zero K
	if skl.head.CompareAndSwap(nil, newXIoSklNode[K](zero, xSklMaxLevel)) && skl.logger != nil {
		skl.logger.Debug("x-skl insert-only initialized", zap.Int32("maxLevel", xSklMaxLevel))
	}
	return true
}

func (skl *xIoSkl[K]) loadHead() *xIoSklNode[K] {
	head := skl.head.Load()
	if head == nil {
		panic(ErrXSklNotInitialized)
	}
	return head
}

func (skl *xIoSkl[K]) Len() int64 {
	return skl.len.Load()
}

func (skl *xIoSkl[K]) Levels() int32 {
	return skl.hint.load()
}

// FreeListLen is always 0, nothing is unlinked.
func (skl *xIoSkl[K]) FreeListLen() int {
	return 0
}

func (skl *xIoSkl[K]) find(head *xIoSklNode[K], key K, levels int32, aux sklAux[xIoSklNode[K]]) bool {
	var (
		pred = head
		curr *xIoSklNode[K]
		cmp  int64
	)
	for l := levels - 1; l >= 0; l-- {
		curr, cmp = pred.next[l].Load(), 1
		for curr != nil {
			if cmp = skl.kcmp(key, curr.key); cmp > 0 {
				pred, curr = curr, curr.next[l].Load()
				continue
			}
			break
		}
		aux.storePred(l, pred)
		aux.storeSucc(l, curr)
	}
	return cmp == 0
}

func (skl *xIoSkl[K]) insert(head *xIoSklNode[K], key K) error {
	var (
		aux   = skl.pool.loadAux()
		level = skl.rand.randomLevel()
		node  *xIoSklNode[K]
	)
	defer skl.pool.releaseAux(aux)

	for {
		if skl.find(head, key, maxHeight(skl.hint.load(), level), aux) {
			if node != nil {
				skl.allocator.release()
			}
			return ErrXSklKeyExists
		}
		if node == nil {
			if !skl.allocator.reserve() {
				return ErrXSklAllocFailed
			}
			node = newXIoSklNode[K](key, level)
		}
		for l := int32(0); l < level; l++ {
			node.next[l].Store(aux.loadSucc(l))
		}
		if aux.loadPred(0).next[0].CompareAndSwap(aux.loadSucc(0), node) {
			break
		}
		skl.stats.IncreaseCASRetryCount()
	}
	skl.len.Add(1)

	for l := int32(1); l < level; l++ {
		for !aux.loadPred(l).next[l].CompareAndSwap(aux.loadSucc(l), node) {
			skl.stats.IncreaseCASRetryCount()
			// Search again and refresh the links not published yet.
			skl.find(head, key, maxHeight(skl.hint.load(), level), aux)
			for j := l; j < level; j++ {
				node.next[j].Store(aux.loadSucc(j))
			}
		}
	}
	if skl.hint.raise(level) && skl.logger != nil {
		skl.logger.Debug("x-skl level hint raised", zap.Int32("levels", level))
	}
	return nil
}

func (skl *xIoSkl[K]) InsertE(key K) error {
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

func (skl *xIoSkl[K]) Insert(key K) bool {
	err := skl.InsertE(key)
	if errors.Is(err, ErrXSklNotInitialized) {
		panic(err)
	}
	return err == nil
}

func (skl *xIoSkl[K]) Contains(key K) bool {
	_, ok := skl.Find(key)
	return ok
}

func (skl *xIoSkl[K]) Find(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	if skl.find(head, key, skl.hint.load(), aux) {
		return aux.loadSucc(0).key, true
	}
	var zero K
	return zero, false
}

func (skl *xIoSkl[K]) Foreach(action func(idx int64, key K) bool) {
	idx := int64(0)
	for node := skl.loadHead().next[0].Load(); node != nil; node = node.next[0].Load() {
		if !action(idx, node.key) {
			return
		}
		idx++
	}
}

func (skl *xIoSkl[K]) Iterator() *XSklIterator[K] {
	skl.loadHead()
	return newXSklIterator[K](skl)
}

func (skl *xIoSkl[K]) first() (K, bool) {
	if node := skl.loadHead().next[0].Load(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (skl *xIoSkl[K]) last() (K, bool) {
	head := skl.loadHead()
	pred := head
	for l := skl.hint.load() - 1; l >= 0; l-- {
		for curr := pred.next[l].Load(); curr != nil; curr = curr.next[l].Load() {
			pred = curr
		}
	}
	if pred == head {
		var zero K
		return zero, false
	}
	return pred.key, true
}

func (skl *xIoSkl[K]) successor(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	var node *xIoSklNode[K]
	if skl.find(head, key, skl.hint.load(), aux) {
		node = aux.loadSucc(0).next[0].Load()
	} else {
		node = aux.loadSucc(0)
	}
	if node == nil {
		var zero K
		return zero, false
	}
	return node.key, true
}

func (skl *xIoSkl[K]) predecessor(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	skl.find(head, key, skl.hint.load(), aux)
	if pred := aux.loadPred(0); pred != head {
		return pred.key, true
	}
	var zero K
	return zero, false
}

func (skl *xIoSkl[K]) ceiling(key K) (K, bool) {
	head := skl.loadHead()
	aux := skl.pool.loadAux()
	defer skl.pool.releaseAux(aux)

	skl.find(head, key, skl.hint.load(), aux)
	if node := aux.loadSucc(0); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}
