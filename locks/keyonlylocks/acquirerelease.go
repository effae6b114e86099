package keyonlylocks

import (
	"sort"
	"sync"
)

// AcquireLocks takes every key or none. It never waits: a key already held
// fails the whole acquisition.
func AcquireLocks(lockStore *sync.Map, keys []string) ([]string, bool) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var acquired []string
	for _, key := range sorted {
		_, loaded := lockStore.LoadOrStore(key, struct{}{})
		if loaded {
			// rollback previously acquired locks
			for _, k := range acquired {
				lockStore.Delete(k)
			}
			return nil, false
		}
		acquired = append(acquired, key)
	}
	return acquired, true
}

// ReleaseLocks delete locks from the lockStore *sync.Map
// Wrap this in deferred calls to guarantee to be called even if panic occurs.
func ReleaseLocks(lockStore *sync.Map, keys []string) {
	for _, key := range keys {
		lockStore.Delete(key)
	}
}

// ActionLocks serializes actions per key, e.g. "export:{sourceId}".
type ActionLocks struct {
	store sync.Map
}

// TryAcquire returns a release func, or false when any key is busy.
func (l *ActionLocks) TryAcquire(keys ...string) (func(), bool) {
	acquired, ok := AcquireLocks(&l.store, keys)
	if !ok {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { ReleaseLocks(&l.store, acquired) }) }, true
}

func ExportKey(sourceID string) string {
	return "export:" + sourceID
}
