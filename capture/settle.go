package capture

import (
	"context"
	"time"
)

// SettlePolicy bounds the wait for a stable layout before capture.
type SettlePolicy struct {
	Interval time.Duration
	Max      time.Duration
}

// WaitStable polls measure until two consecutive results are equal or Max
// elapses. It reports whether the layout was seen stable.
func WaitStable(ctx context.Context, p SettlePolicy, measure func() string) (bool, error) {
	if p.Interval <= 0 {
		p.Interval = 50 * time.Millisecond
	}
	deadline := time.NewTimer(p.Max)
	defer deadline.Stop()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	prev := measure()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			cur := measure()
			if cur == prev {
				return true, nil
			}
			prev = cur
		}
	}
}
