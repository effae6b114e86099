package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zeptools/gw-docprint/compositor"
)

// Remover is a sink that can take back an artifact it persisted.
type Remover interface {
	Remove(ctx context.Context, location string) error
}

// Tee persists to every sink in order. The location of the first sink is
// returned. When a sink fails, the copies already stored are removed again
// and the whole persist fails.
type Tee []compositor.Sink

var _ compositor.Sink = Tee(nil)

func (t Tee) Persist(ctx context.Context, a *compositor.Artifact) (string, error) {
	if len(t) == 0 {
		return "", errors.New("tee: no sinks")
	}
	locations := make([]string, 0, len(t))
	for _, s := range t {
		loc, err := s.Persist(ctx, a)
		if err != nil {
			return "", errors.Join(err, t.rollback(ctx, a.Name, locations))
		}
		locations = append(locations, loc)
	}
	return locations[0], nil
}

// rollback removes the stored copies newest first.
func (t Tee) rollback(ctx context.Context, name string, locations []string) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(locations) - 1; i >= 0; i-- {
		r, ok := t[i].(Remover)
		if !ok {
			errs = append(errs, fmt.Errorf("tee: %s left at %s: sink cannot remove", name, locations[i]))
			continue
		}
		if err := r.Remove(ctx, locations[i]); err != nil {
			errs = append(errs, fmt.Errorf("tee: remove %s: %w", name, err))
			continue
		}
		log.Printf("[INFO][ARTIFACTS] %s removed from sink %d after a later sink failed", name, i)
	}
	return errors.Join(errs...)
}
