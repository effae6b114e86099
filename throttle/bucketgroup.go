package throttle

import (
	"sync"
	"time"
)

// BucketGroup is a set of buckets sharing one BucketConf, keyed by caller.
type BucketGroup[K comparable] struct {
	conf    *BucketConf
	buckets sync.Map // K -> *Bucket[K]
}

func (g *BucketGroup[K]) Conf() BucketConf {
	return *g.conf
}

func (g *BucketGroup[K]) GetBucket(id K) (*Bucket[K], bool) {
	bAny, ok := g.buckets.Load(id)
	if !ok {
		return nil, false
	}
	return bAny.(*Bucket[K]), true
}

// bucket returns the caller's bucket, creating a full one on first use.
// Concurrent first requests share the bucket that won the store.
func (g *BucketGroup[K]) bucket(id K, now time.Time) *Bucket[K] {
	if b, ok := g.GetBucket(id); ok {
		return b
	}
	bAny, _ := g.buckets.LoadOrStore(id, &Bucket[K]{
		tokens:    g.conf.Burst,
		lastCheck: now,
		group:     g,
	})
	return bAny.(*Bucket[K])
}

// Len counts the live buckets.
func (g *BucketGroup[K]) Len() int {
	n := 0
	g.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
