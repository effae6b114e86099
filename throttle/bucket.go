package throttle

import (
	"sync"
	"time"
)

// Bucket is the token bucket of one caller inside a group.
type Bucket[K comparable] struct {
	mu        sync.Mutex // protects tokens and lastCheck
	tokens    int
	lastCheck time.Time
	group     *BucketGroup[K]
}

// refill adds the increments of every full period since lastCheck.
// Callers hold mu.
func (b *Bucket[K]) refill(now time.Time) {
	conf := b.group.conf
	elapsed := now.Sub(b.lastCheck)
	if elapsed < conf.Period {
		return
	}
	periods := int(elapsed / conf.Period)
	b.tokens = min(conf.Burst, b.tokens+periods*conf.Increment)
	b.lastCheck = b.lastCheck.Add(time.Duration(periods) * conf.Period)
}

// Take consumes one token. An empty bucket returns false and the time left
// until its next refill.
func (b *Bucket[K]) Take(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, max(0, b.lastCheck.Add(b.group.conf.Period).Sub(now))
}

func (b *Bucket[K]) Allow(now time.Time) bool {
	ok, _ := b.Take(now)
	return ok
}

func (b *Bucket[K]) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCheck
}
