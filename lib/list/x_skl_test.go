package list

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/benz9527/xskl/lib/infra"
)

// Both variants share the insert and search behaviour.
type xSklFactory func(t *testing.T, opts ...XSklOption[int64]) XInsertOnlySkl[int64]

func lockFreeSklFactory(t *testing.T, opts ...XSklOption[int64]) XInsertOnlySkl[int64] {
	skl, err := NewXOrderedLockFreeSkl[int64](opts...)
	require.NoError(t, err)
	require.True(t, skl.Init())
	return skl
}

func insertOnlySklFactory(t *testing.T, opts ...XSklOption[int64]) XInsertOnlySkl[int64] {
	skl, err := NewXOrderedInsertOnlySkl[int64](opts...)
	require.NoError(t, err)
	require.True(t, skl.Init())
	return skl
}

var xSklFactories = []struct {
	name    string
	factory xSklFactory
}{
	{"lock-free", lockFreeSklFactory},
	{"insert-only", insertOnlySklFactory},
}

func collectKeys[K any](skl XInsertOnlySkl[K]) []K {
	keys := make([]K, 0, skl.Len())
	skl.Foreach(func(idx int64, key K) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func TestXSkl_Options(t *testing.T) {
	_, err := NewXLockFreeSkl[int64](nil)
	require.True(t, errors.Is(err, ErrXSklNilComparator))

	_, err = NewXOrderedLockFreeSkl[int64](WithXSklFreeListThreshold[int64](0))
	require.True(t, errors.Is(err, ErrXSklInvalidOption))

	_, err = NewXOrderedInsertOnlySkl[int64](WithXSklNodeLimit[int64](-1))
	require.True(t, errors.Is(err, ErrXSklInvalidOption))

	skl, err := NewXOrderedLockFreeSkl[int64](nil, WithXSklRandSeed[int64](7))
	require.NoError(t, err)
	require.NotNil(t, skl)
}

func TestXSkl_NotInitialized(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			var (
				skl XInsertOnlySkl[int64]
				err error
			)
			if f.name == "lock-free" {
				skl, err = NewXOrderedLockFreeSkl[int64]()
			} else {
				skl, err = NewXOrderedInsertOnlySkl[int64]()
			}
			require.NoError(tt, err)
			require.True(tt, errors.Is(skl.InsertE(1), ErrXSklNotInitialized))
			require.Panics(tt, func() { skl.Insert(1) })
			require.Panics(tt, func() { skl.Contains(1) })
			require.Panics(tt, func() { skl.Iterator() })

			require.True(tt, skl.Init())
			require.True(tt, skl.Init())
			require.True(tt, skl.Insert(1))
			require.Equal(tt, int64(1), skl.Len())
		})
	}
}

func TestXSkl_EmptyList(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt)
			require.False(tt, skl.Contains(0))
			require.False(tt, skl.Contains(math.MinInt64))
			require.Equal(tt, int64(0), skl.Len())
			require.Equal(tt, int32(1), skl.Levels())
			require.Empty(tt, collectKeys[int64](skl))

			it := skl.Iterator()
			require.False(tt, it.Begin())
			require.False(tt, it.Valid())
			require.False(tt, it.End())
			require.False(tt, it.Seek(0))
			require.False(tt, it.Next())
			require.False(tt, it.Prev())
		})
	}
}

// Insert 5,1,3, iterate, iterate backward.
func TestXSkl_InsertAndIterate(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt)
			for _, k := range []int64{5, 1, 3} {
				require.True(tt, skl.Insert(k))
			}
			require.Equal(tt, []int64{1, 3, 5}, collectKeys[int64](skl))

			it := skl.Iterator()
			forward := make([]int64, 0, 3)
			for ok := it.Begin(); ok; ok = it.Next() {
				forward = append(forward, it.Key())
			}
			require.Equal(tt, []int64{1, 3, 5}, forward)
			require.False(tt, it.Valid())

			backward := make([]int64, 0, 3)
			for ok := it.End(); ok; ok = it.Prev() {
				backward = append(backward, it.Key())
			}
			require.Equal(tt, []int64{5, 3, 1}, backward)

			require.True(tt, it.Seek(2))
			require.Equal(tt, int64(3), it.Key())
			require.True(tt, it.Seek(3))
			require.Equal(tt, int64(3), it.Key())
			require.False(tt, it.Seek(6))
		})
	}
}

func TestXSkl_DuplicateInsert(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt)
			require.True(tt, skl.Insert(7))
			require.False(tt, skl.Insert(7))
			require.True(tt, errors.Is(skl.InsertE(7), ErrXSklKeyExists))
			require.Equal(tt, int64(1), skl.Len())
			require.Equal(tt, []int64{7}, collectKeys[int64](skl))
		})
	}
}

func TestXSkl_SequentialOrder(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt, WithXSklRandSeed[int64](1024))
			keys := make([]int64, 0, 2000)
			for i := int64(0); i < 2000; i++ {
				keys = append(keys, (i*7919)%2003-1000)
			}
			inserted := make(map[int64]struct{}, len(keys))
			for _, k := range keys {
				_, dup := inserted[k]
				require.Equal(tt, !dup, skl.Insert(k))
				inserted[k] = struct{}{}
			}
			expected := make([]int64, 0, len(inserted))
			for k := range inserted {
				expected = append(expected, k)
			}
			sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })
			require.Equal(tt, expected, collectKeys[int64](skl))
			require.Equal(tt, int64(len(expected)), skl.Len())
			require.GreaterOrEqual(tt, skl.Levels(), int32(2))
			require.LessOrEqual(tt, skl.Levels(), int32(xSklMaxLevel))

			for _, k := range expected {
				require.True(tt, skl.Contains(k))
			}
			require.False(tt, skl.Contains(-1001))
			require.False(tt, skl.Contains(1003))

			var stopped []int64
			skl.Foreach(func(idx int64, key int64) bool {
				stopped = append(stopped, key)
				return idx < 2
			})
			require.Equal(tt, expected[:3], stopped)
		})
	}
}

func TestXSkl_NodeLimit(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt, WithXSklNodeLimit[int64](2))
			require.True(tt, skl.Insert(1))
			require.True(tt, skl.Insert(2))
			require.False(tt, skl.Insert(3))
			require.True(tt, errors.Is(skl.InsertE(3), ErrXSklAllocFailed))
			// Duplicates are reported before the allocation.
			require.True(tt, errors.Is(skl.InsertE(2), ErrXSklKeyExists))
			require.Equal(tt, int64(2), skl.Len())
			require.False(tt, skl.Contains(3))
		})
	}
}

// A prefix comparator makes distinct keys equal, Find returns the stored one.
func TestXSkl_PrefixComparator(t *testing.T) {
	prefixCmp := func(i, j string) int64 {
		if len(i) > 3 {
			i = i[:3]
		}
		if len(j) > 3 {
			j = j[:3]
		}
		return int64(strings.Compare(i, j))
	}
	lf, err := NewXLockFreeSkl[string](prefixCmp)
	require.NoError(t, err)
	io, err := NewXInsertOnlySkl[string](prefixCmp)
	require.NoError(t, err)

	for _, skl := range []XInsertOnlySkl[string]{lf, io} {
		require.True(t, skl.Init())
		require.True(t, skl.Insert("apple"))
		require.True(t, skl.Insert("banana"))
		require.False(t, skl.Insert("application"))

		stored, ok := skl.Find("app")
		require.True(t, ok)
		require.Equal(t, "apple", stored)
		stored, ok = skl.Find("band")
		require.True(t, ok)
		require.Equal(t, "banana", stored)
		_, ok = skl.Find("cherry")
		require.False(t, ok)
	}
}

func TestXSkl_ReverseComparator(t *testing.T) {
	skl, err := NewXInsertOnlySkl[uint32](infra.ReverseOrderedKeyCompare[uint32])
	require.NoError(t, err)
	require.True(t, skl.Init())
	for _, k := range []uint32{1, 100, 10} {
		require.True(t, skl.Insert(k))
	}
	require.Equal(t, []uint32{100, 10, 1}, collectKeys[uint32](skl))
}

// Concurrent disjoint inserts, every key must be present once.
func TestXSkl_ConcurrentInsert(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt)
			const (
				workers = 8
				perW    = 2000
			)
			var g errgroup.Group
			for w := 0; w < workers; w++ {
				w := w
				g.Go(func() error {
					for i := 0; i < perW; i++ {
						k := int64(i*workers + w)
						if !skl.Insert(k) {
							return errors.New("insert of a fresh key failed")
						}
					}
					return nil
				})
			}
			require.NoError(tt, g.Wait())
			require.Equal(tt, int64(workers*perW), skl.Len())

			keys := collectKeys[int64](skl)
			require.Len(tt, keys, workers*perW)
			for i, k := range keys {
				require.Equal(tt, int64(i), k)
			}
		})
	}
}

// Concurrent inserts of the same keys, exactly one insert per key wins.
func TestXSkl_ConcurrentDuplicateInsert(t *testing.T) {
	for _, f := range xSklFactories {
		t.Run(f.name, func(tt *testing.T) {
			skl := f.factory(tt)
			const (
				workers = 8
				keys    = 1000
			)
			wins := make([]int32, keys)
			var (
				lock sync.Mutex
				wg   sync.WaitGroup
			)
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func() {
					defer wg.Done()
					for k := 0; k < keys; k++ {
						if skl.Insert(int64(k)) {
							lock.Lock()
							wins[k]++
							lock.Unlock()
						}
					}
				}()
			}
			wg.Wait()
			for k := 0; k < keys; k++ {
				assert.Equal(tt, int32(1), wins[k], "key %d", k)
			}
			require.Equal(tt, int64(keys), skl.Len())
		})
	}
}

func BenchmarkXSkl_Insert(b *testing.B) {
	for _, f := range []struct {
		name string
		new  func() XInsertOnlySkl[int64]
	}{
		{"lock-free", func() XInsertOnlySkl[int64] {
			skl, _ := NewXOrderedLockFreeSkl[int64]()
			return skl
		}},
		{"insert-only", func() XInsertOnlySkl[int64] {
			skl, _ := NewXOrderedInsertOnlySkl[int64]()
			return skl
		}},
	} {
		b.Run(f.name, func(bb *testing.B) {
			skl := f.new()
			skl.Init()
			bb.ResetTimer()
			for i := 0; i < bb.N; i++ {
				skl.Insert(int64(i))
			}
		})
	}
}
