package list

import (
	"errors"

	"github.com/benz9527/xskl/lib/infra"
	"github.com/benz9527/xskl/xlog"
)

// References:
// https://www.cl.cam.ac.uk/techreports/UCAM-CL-TR-579.pdf (Practical lock-freedom)
// The Art of Multiprocessor Programming, Revised Print, chapter 14.4
// https://people.csail.mit.edu/shanir/publications/LazySkipList.pdf
// https://github.com/AdoptOpenJDK/openjdk-jdk11/blob/master/src/java.base/share/classes/java/util/concurrent/ConcurrentSkipListMap.java
//
// Head node      Index nodes
// +-+    next    +-+                      +-+
// |2|----------->| |--------------------->| |->nil
// +-+            +-+                      +-+
// |1|-->+-+----->| |------->+-+---------->| |->nil
// +-+   | |      +-+        | |           +-+
// |0|-->| |----->| |->| |-->| |->| |----->| |->nil
// +-+   +-+      +-+  +-+   +-+  +-+      +-+
//
// A deleted node marks its own forward pointers from its top level down to
// level 0. The mark at level 0 is the linearization point of the erase.

const (
	// [Probability] P = 1/4
	// [Maximum number of elements] N = 2^32
	// L(N) = log1/P(N) = log4(2^32) = 16
	xSklMaxLevel          = 16        // level 0 is the data node level.
	xSklProbability       = 0.25      // P = 1/4, a node has 1/4 probability to own one more level.
	xSklFreeListThreshold = 32 * 1024 // unlinked nodes kept before the oldest one is evicted.
)

var (
	ErrXSklNotInitialized = errors.New("[x-skl] not initialized")
	ErrXSklNilComparator  = errors.New("[x-skl] key comparator is nil")
	ErrXSklKeyExists      = errors.New("[x-skl] key already exists")
	ErrXSklNotFound       = errors.New("[x-skl] key not found")
	ErrXSklAllocFailed    = errors.New("[x-skl] node allocation failed")
	ErrXSklInvalidOption  = errors.New("[x-skl] invalid option")
)

type xSklOptions[K any] struct {
	logger            xlog.XLogger
	statsName         string
	statsEnabled      bool
	freeListThreshold int
	nodeLimit         int64
	randSeed          *uint64
}

type XSklOption[K any] func(*xSklOptions[K]) error

// WithXSklLogger logs the structural events (init, level hint raise,
// free list eviction, allocation failure). Nothing is logged on the
// successful hot path.
func WithXSklLogger[K any](logger xlog.XLogger) XSklOption[K] {
	return func(opts *xSklOptions[K]) error {
		opts.logger = logger
		return nil
	}
}

// WithXSklStats registers the OpenTelemetry instruments under the meter
// "xskl/<name>".
func WithXSklStats[K any](name string) XSklOption[K] {
	return func(opts *xSklOptions[K]) error {
		opts.statsEnabled = true
		opts.statsName = name
		return nil
	}
}

func WithXSklFreeListThreshold[K any](threshold int) XSklOption[K] {
	return func(opts *xSklOptions[K]) error {
		if threshold <= 0 {
			return infra.WrapErrorStackWithMessage(ErrXSklInvalidOption, "free list threshold must be positive")
		}
		opts.freeListThreshold = threshold
		return nil
	}
}

// WithXSklNodeLimit caps the live data nodes. Insert fails with
// ErrXSklAllocFailed once the cap is reached.
func WithXSklNodeLimit[K any](limit int64) XSklOption[K] {
	return func(opts *xSklOptions[K]) error {
		if limit <= 0 {
			return infra.WrapErrorStackWithMessage(ErrXSklInvalidOption, "node limit must be positive")
		}
		opts.nodeLimit = limit
		return nil
	}
}

// WithXSklRandSeed makes the level generators deterministic per worker.
func WithXSklRandSeed[K any](seed uint64) XSklOption[K] {
	return func(opts *xSklOptions[K]) error {
		opts.randSeed = &seed
		return nil
	}
}

func loadXSklOptions[K any](cmp infra.OrderedKeyComparator[K], opts ...XSklOption[K]) (*xSklOptions[K], error) {
	if cmp == nil {
		return nil, infra.WrapErrorStack(ErrXSklNilComparator)
	}
	o := &xSklOptions[K]{
		freeListThreshold: xSklFreeListThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// NewXLockFreeSkl creates the full variant. Init must be called before use.
func NewXLockFreeSkl[K any](cmp infra.OrderedKeyComparator[K], opts ...XSklOption[K]) (XLockFreeSkl[K], error) {
	o, err := loadXSklOptions[K](cmp, opts...)
	if err != nil {
		return nil, err
	}
	return newXLfSkl[K](cmp, o), nil
}

// NewXInsertOnlySkl creates the insert-only variant. Init must be called before use.
func NewXInsertOnlySkl[K any](cmp infra.OrderedKeyComparator[K], opts ...XSklOption[K]) (XInsertOnlySkl[K], error) {
	o, err := loadXSklOptions[K](cmp, opts...)
	if err != nil {
		return nil, err
	}
	return newXIoSkl[K](cmp, o), nil
}

func NewXOrderedLockFreeSkl[K infra.OrderedKey](opts ...XSklOption[K]) (XLockFreeSkl[K], error) {
	return NewXLockFreeSkl[K](infra.OrderedKeyCompare[K], opts...)
}

func NewXOrderedInsertOnlySkl[K infra.OrderedKey](opts ...XSklOption[K]) (XInsertOnlySkl[K], error) {
	return NewXInsertOnlySkl[K](infra.OrderedKeyCompare[K], opts...)
}

func maxHeight(i, j int32) int32 {
	if i > j {
		return i
	}
	return j
}
