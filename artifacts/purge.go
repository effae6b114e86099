package artifacts

import (
	"context"
	"time"
)

// Purger drops stored data older than a retention period and reports how
// many items went.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int, error)
}

var (
	_ Purger = (*FileSink)(nil)
	_ Purger = (*Ledger)(nil)
)
