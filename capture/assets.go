package capture

import (
	"sync"

	"github.com/zeptools/gw-docprint/raster"
)

// Assets is the output of one capture: the raster and the handle that undoes
// every mutation made to produce it. The handle runs at most once.
type Assets struct {
	Raster *raster.Raster

	restore func() error
	once    sync.Once
	err     error
	done    bool
}

func NewAssets(r *raster.Raster, restore func() error) *Assets {
	return &Assets{Raster: r, restore: restore}
}

// Restore runs the restore handle the first time it is called and returns
// that result on every later call.
func (a *Assets) Restore() error {
	a.once.Do(func() {
		a.done = true
		if a.restore != nil {
			a.err = a.restore()
		}
	})
	return a.err
}

func (a *Assets) Restored() bool {
	return a.done
}
