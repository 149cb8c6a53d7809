package list

// XInsertOnlySkl is the write-once ordered key index. Keys are never
// removed while the index is alive.
type XInsertOnlySkl[K any] interface {
	// Init allocates the header. It must be called once before any other
	// method. It reports false only if the header could not be allocated.
	Init() bool
	// Insert reports true if the key was newly added, false if the key is
	// already present or the node could not be allocated.
	Insert(key K) bool
	// InsertE is Insert with the failure reason.
	InsertE(key K) error
	Contains(key K) bool
	// Find returns the stored key that compares equal to key. It is useful
	// when the comparator is not an identity (i.e. prefix comparison).
	Find(key K) (K, bool)
	Iterator() *XSklIterator[K]
	// Foreach visits the live keys in order until the action returns false.
	Foreach(action func(idx int64, key K) bool)
	// Len is weakly consistent while writers run. It may briefly count
	// an insert whose link is not yet visible, it is never negative.
	Len() int64
	Levels() int32
}

// XLockFreeSkl is the full ordered key index, supporting lock-free erase.
type XLockFreeSkl[K any] interface {
	XInsertOnlySkl[K]
	// Erase reports true if the key was present and this call removed it.
	Erase(key K) bool
	// EraseE is Erase with the failure reason.
	EraseE(key K) error
	// FreeListLen returns the number of unlinked nodes held for deferred reclamation.
	FreeListLen() int
}

// sklCursor is the search protocol an iterator re-runs on every step.
type sklCursor[K any] interface {
	first() (K, bool)
	last() (K, bool)
	successor(key K) (K, bool)
	predecessor(key K) (K, bool)
	ceiling(key K) (K, bool)
}
