package stress

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// keyState is the lifecycle of a key in the oracle.
//
//	NotUsed -> InUse -> Inserted -> InUse -> Erased -> InUse -> Inserted ...
//
// A worker owns a key exclusively while it is InUse, so the expected answer
// of the structure for that key is fixed during the operation.
type keyState uint32

const (
	keyNotUsed keyState = iota
	keyInUse
	keyInserted
	keyErased
)

func (s keyState) String() string {
	switch s {
	case keyNotUsed:
		return "not-used"
	case keyInUse:
		return "in-use"
	case keyInserted:
		return "inserted"
	case keyErased:
		return "erased"
	default:
	}
	return "unknown"
}

const claimAttempts = 64

type oracle struct {
	states []atomic.Uint32
}

func newOracle(keySpace uint32) *oracle {
	return &oracle{
		states: make([]atomic.Uint32, keySpace),
	}
}

func (o *oracle) keySpace() uint32 {
	return uint32(len(o.states))
}

func (o *oracle) load(key uint32) keyState {
	return keyState(o.states[key].Load())
}

// claim picks a random key in one of the from states and moves it to InUse.
func (o *oracle) claim(rng *rand.Rand, from ...keyState) (uint32, keyState, bool) {
	n := o.keySpace()
	for i := 0; i < claimAttempts; i++ {
		key := rng.Uint32N(n)
		state := o.load(key)
		for _, s := range from {
			if state == s && o.states[key].CompareAndSwap(uint32(s), uint32(keyInUse)) {
				return key, s, true
			}
		}
	}
	return 0, keyNotUsed, false
}

func (o *oracle) claimKey(key uint32, from keyState) bool {
	return o.states[key].CompareAndSwap(uint32(from), uint32(keyInUse))
}

func (o *oracle) release(key uint32, to keyState) {
	o.states[key].Store(uint32(to))
}

// expected returns the keys the structure must hold. Keys still InUse are
// reported separately, their outcome is undecided.
func (o *oracle) expected() (live, undecided *roaring.Bitmap) {
	live, undecided = roaring.New(), roaring.New()
	for key := range o.states {
		switch o.load(uint32(key)) {
		case keyInserted:
			live.Add(uint32(key))
		case keyInUse:
			undecided.Add(uint32(key))
		default:
		}
	}
	return live, undecided
}
