package stress

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benz9527/xskl/lib/infra"
	"github.com/benz9527/xskl/lib/list"
	"github.com/benz9527/xskl/observability"
	"github.com/benz9527/xskl/xlog"
)

// Harness drives one skip list with concurrent workers and checks every
// answer against the oracle.
type Harness struct {
	cfg    Config
	logger xlog.XLogger
	skl    list.XInsertOnlySkl[uint32]
	lf     list.XLockFreeSkl[uint32] // nil for the insert-only variant
	oracle *oracle
	seed   uint64
	nextID atomic.Uint64

	inserts atomic.Uint64
	erases  atomic.Uint64
	reads   atomic.Uint64
	scans   atomic.Uint64
	idle    atomic.Uint64

	violationCount atomic.Uint64
	violationLock  sync.Mutex
	violations     error
}

func NewHarness(cfg Config, logger xlog.XLogger) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := make([]list.XSklOption[uint32], 0, 4)
	if logger != nil {
		opts = append(opts, list.WithXSklLogger[uint32](logger))
	}
	if cfg.StatsName != "" {
		opts = append(opts, list.WithXSklStats[uint32](cfg.StatsName))
	}
	if cfg.Seed != 0 {
		opts = append(opts, list.WithXSklRandSeed[uint32](cfg.Seed))
	}

	h := &Harness{
		cfg:    cfg,
		logger: logger,
		oracle: newOracle(cfg.KeySpace),
		seed:   lo.Ternary(cfg.Seed != 0, cfg.Seed, rand.Uint64()),
	}
	switch cfg.Variant {
	case VariantFull:
		skl, err := list.NewXOrderedLockFreeSkl[uint32](opts...)
		if err != nil {
			return nil, err
		}
		h.skl, h.lf = skl, skl
	case VariantInsertOnly:
		skl, err := list.NewXOrderedInsertOnlySkl[uint32](opts...)
		if err != nil {
			return nil, err
		}
		h.skl = skl
	default:
		return nil, infra.WrapErrorStack(ErrUnknownVariant)
	}
	if !h.skl.Init() {
		return nil, infra.WrapErrorStack(list.ErrXSklAllocFailed)
	}
	return h, nil
}

// Structure returns the skip list under test.
func (h *Harness) Structure() list.XInsertOnlySkl[uint32] {
	return h.skl
}

func (h *Harness) workerRand() *rand.Rand {
	return rand.New(rand.NewPCG(h.seed, h.nextID.Add(1)))
}

func (h *Harness) violate(format string, args ...any) {
	err := fmt.Errorf("%w: "+format, append([]any{ErrViolation}, args...)...)
	if h.logger != nil {
		h.logger.Error(err, "stress violation")
	}
	if h.violationCount.Add(1) > maxViolationsTracked {
		return
	}
	h.violationLock.Lock()
	h.violations = multierr.Append(h.violations, err)
	h.violationLock.Unlock()
}

// settle releases a key whose operation failed unexpectedly with the state
// the structure actually holds.
func (h *Harness) settle(key uint32, absent keyState) {
	h.oracle.release(key, lo.Ternary(h.skl.Contains(key), keyInserted, absent))
}

func (h *Harness) insertOnce(rng *rand.Rand) bool {
	from := lo.Ternary(h.lf != nil,
		[]keyState{keyNotUsed, keyErased},
		[]keyState{keyNotUsed},
	)
	key, prev, ok := h.oracle.claim(rng, from...)
	if !ok {
		return false
	}
	if err := h.skl.InsertE(key); err != nil {
		h.violate("insert key %d (was %s): %v", key, prev, err)
		h.settle(key, prev)
		return true
	}
	h.inserts.Add(1)
	h.oracle.release(key, keyInserted)
	return true
}

func (h *Harness) eraseOnce(rng *rand.Rand) bool {
	key, _, ok := h.oracle.claim(rng, keyInserted)
	if !ok {
		return false
	}
	if err := h.lf.EraseE(key); err != nil {
		h.violate("erase key %d: %v", key, err)
		h.settle(key, keyErased)
		return true
	}
	h.erases.Add(1)
	h.oracle.release(key, keyErased)
	return true
}

func (h *Harness) readOnce(rng *rand.Rand) bool {
	key, prev, ok := h.oracle.claim(rng, keyInserted, keyErased, keyNotUsed)
	if !ok {
		return false
	}
	expected := prev == keyInserted
	if got := h.skl.Contains(key); got != expected {
		h.violate("contains key %d = %v, expected %v (%s)", key, got, expected, prev)
	}
	if found, ok := h.skl.Find(key); ok != expected || (ok && found != key) {
		h.violate("find key %d = (%d, %v), expected %v", key, found, ok, expected)
	}
	h.reads.Add(1)
	h.oracle.release(key, prev)
	return true
}

// scanOnce checks the strict ordering of a forward or a backward scan.
func (h *Harness) scanOnce(ctx context.Context, forward bool) {
	var (
		prev  uint32
		first = true
	)
	check := func(key uint32) bool {
		if !first && ((forward && key <= prev) || (!forward && key >= prev)) {
			h.violate("scan order broken, forward %v: %d after %d", forward, key, prev)
			return false
		}
		if key >= h.cfg.KeySpace {
			h.violate("scan met key %d out of key space", key)
			return false
		}
		prev, first = key, false
		return ctx.Err() == nil
	}
	if forward {
		h.skl.Foreach(func(_ int64, key uint32) bool {
			return check(key)
		})
	} else {
		it := h.skl.Iterator()
		for ok := it.End(); ok && check(it.Key()); ok = it.Prev() {
		}
	}
	h.scans.Add(1)
}

func (h *Harness) loop(ctx context.Context, op func(rng *rand.Rand) bool) {
	rng := h.workerRand()
	for ctx.Err() == nil {
		if !op(rng) {
			h.idle.Add(1)
			runtime.Gosched()
		}
	}
}

// Run starts the configured workers on an ants pool and stops them when the
// duration elapses or ctx is done. The final content is verified against
// the oracle once every worker has returned.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	var cancel context.CancelFunc
	if h.cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	poolOpts := []ants.Option{ants.WithPreAlloc(true)}
	if h.logger != nil {
		poolOpts = append(poolOpts, ants.WithLogger(xlog.NewAntsXLogger(h.logger)))
	}
	pool, err := ants.NewPool(h.cfg.Workers(), poolOpts...)
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	defer pool.Release()

	type workerGroup struct {
		n  int
		fn func()
	}
	groups := []workerGroup{
		{h.cfg.Writers, func() { h.loop(ctx, h.insertOnce) }},
		{h.cfg.Readers, func() { h.loop(ctx, h.readOnce) }},
		{h.cfg.Iterators, func() {
			for forward := true; ctx.Err() == nil; forward = !forward {
				h.scanOnce(ctx, forward)
			}
		}},
	}
	if h.lf != nil {
		groups = append(groups, workerGroup{h.cfg.Erasers, func() { h.loop(ctx, h.eraseOnce) }})
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, g := range groups {
		for i := 0; i < g.n; i++ {
			wg.Add(1)
			fn := g.fn
			if err = pool.Submit(func() {
				defer wg.Done()
				fn()
			}); err != nil {
				wg.Done()
				cancel()
				wg.Wait()
				return nil, infra.WrapErrorStack(err)
			}
		}
	}
	if h.logger != nil {
		h.logger.Info("stress workers started",
			zap.String("variant", h.cfg.Variant.String()),
			zap.Int("workers", h.cfg.Workers()),
			zap.Uint32("keySpace", h.cfg.KeySpace),
		)
	}
	wg.Wait()
	return h.report(time.Since(start)), nil
}

func splitKeySpace(keySpace uint32, parts int) [][2]uint32 {
	parts = max(parts, 1)
	span := (uint64(keySpace) + uint64(parts) - 1) / uint64(parts)
	ranges := make([][2]uint32, 0, parts)
	for lower := uint64(0); lower < uint64(keySpace); lower += span {
		ranges = append(ranges, [2]uint32{uint32(lower), uint32(min(lower+span, uint64(keySpace)))})
	}
	return ranges
}

// RunPhased inserts the whole key space with disjoint writer ranges, then
// erases the even keys with disjoint eraser ranges (full variant only), then
// checks Contains for every key.
func (h *Harness) RunPhased(ctx context.Context) (*Report, error) {
	start := time.Now()
	phase := func(parts int, fn func(key uint32)) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, r := range splitKeySpace(h.cfg.KeySpace, parts) {
			g.Go(func() error {
				for key := r[0]; key < r[1]; key++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					fn(key)
				}
				return nil
			})
		}
		return g.Wait()
	}

	if err := phase(h.cfg.Writers, func(key uint32) {
		if !h.oracle.claimKey(key, keyNotUsed) {
			return
		}
		if !h.skl.Insert(key) {
			h.violate("phased insert key %d reported false", key)
			h.settle(key, keyNotUsed)
			return
		}
		h.inserts.Add(1)
		h.oracle.release(key, keyInserted)
	}); err != nil {
		return nil, err
	}

	if h.lf != nil && h.cfg.Erasers > 0 {
		if err := phase(h.cfg.Erasers, func(key uint32) {
			if key&1 != 0 || !h.oracle.claimKey(key, keyInserted) {
				return
			}
			if !h.lf.Erase(key) {
				h.violate("phased erase key %d reported false", key)
				h.settle(key, keyErased)
				return
			}
			h.erases.Add(1)
			h.oracle.release(key, keyErased)
		}); err != nil {
			return nil, err
		}
	}

	if err := phase(max(h.cfg.Readers, 1), func(key uint32) {
		expected := h.oracle.load(key) == keyInserted
		if got := h.skl.Contains(key); got != expected {
			h.violate("phased contains key %d = %v, expected %v", key, got, expected)
		}
		h.reads.Add(1)
	}); err != nil {
		return nil, err
	}
	return h.report(time.Since(start)), nil
}

// verify compares the final content with the oracle. It must run after
// every worker has returned.
func (h *Harness) verify() *roaring.Bitmap {
	expected, undecided := h.oracle.expected()
	actual := roaring.New()
	h.skl.Foreach(func(_ int64, key uint32) bool {
		actual.Add(key)
		return true
	})
	if missing := roaring.AndNot(expected, actual); !missing.IsEmpty() {
		h.violate("%d expected keys missing, smallest %d", missing.GetCardinality(), missing.Minimum())
	}
	unexpected := roaring.AndNot(actual, expected)
	unexpected.AndNot(undecided)
	if !unexpected.IsEmpty() {
		h.violate("%d unexpected keys present, smallest %d", unexpected.GetCardinality(), unexpected.Minimum())
	}
	if n := h.skl.Len(); uint64(n) != actual.GetCardinality() {
		h.violate("length %d differs from %d reachable keys", n, actual.GetCardinality())
	}
	return expected
}

func (h *Harness) report(elapsed time.Duration) *Report {
	expected := h.verify()
	r := &Report{
		Variant:  h.cfg.Variant,
		Elapsed:  elapsed,
		Inserts:  h.inserts.Load(),
		Erases:   h.erases.Load(),
		Reads:    h.reads.Load(),
		Scans:    h.scans.Load(),
		Idle:     h.idle.Load(),
		Len:      h.skl.Len(),
		Expected: expected.GetCardinality(),
		Levels:   h.skl.Levels(),
	}
	if h.lf != nil {
		r.FreeListLen = h.lf.FreeListLen()
	}
	if rss, err := observability.ProcessRSS(); err == nil {
		r.RSS = rss
	}
	h.violationLock.Lock()
	r.Violations = h.violations
	h.violationLock.Unlock()
	r.TotalViolations = h.violationCount.Load()
	return r
}
