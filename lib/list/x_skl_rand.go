package list

// References:
// https://gitee.com/bombel/cdf_skiplist
// http://snap.stanford.edu/data/index.html

import (
	saferand "crypto/rand"
	"encoding/binary"
	randv2 "math/rand/v2"
	"sync"
	"sync/atomic"
)

// xSklRand hands out one PCG generator per worker from a pool, so no
// generator state is shared between concurrent inserts. With a seed the
// generators get distinct streams of it, otherwise crypto random seeds.
type xSklRand struct {
	pool *sync.Pool
}

func newXSklRand(seed *uint64) *xSklRand {
	var stream atomic.Uint64
	return &xSklRand{
		pool: &sync.Pool{
			New: func() any {
				if seed != nil {
					return randv2.New(randv2.NewPCG(*seed, stream.Add(1)))
				}
				return randv2.New(randv2.NewPCG(cryptoRandUint64(), cryptoRandUint64()))
			},
		},
	}
}

// randomLevel returns h in [1, xSklMaxLevel], P(h > n) = 1/4^(n-1).
func (r *xSklRand) randomLevel() int32 {
	src := r.pool.Get().(*randv2.Rand)
	level := int32(1)
	// Two random bits both zero with probability 1/4.
	for level < xSklMaxLevel && src.Uint32()&0x3 == 0 {
		level++
	}
	r.pool.Put(src)
	return level
}

func cryptoRandUint64() uint64 {
	randUint64 := [8]byte{}
	if _, err := saferand.Read(randUint64[:]); err != nil {
		panic(err)
	}
	if randUint64[7]&0x8 == 0x0 {
		return binary.LittleEndian.Uint64(randUint64[:])
	}
	return binary.BigEndian.Uint64(randUint64[:])
}
