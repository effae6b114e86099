package capture

import (
	"errors"
	"fmt"

	"github.com/zeptools/gw-docprint/visual"
)

// ErrBusy is wrapped by the CaptureFailure returned when another capture
// already holds the region.
var ErrBusy = errors.New("source is already being captured")

// DecorativeSelectors name the source's own header/footer parts, which the
// output document replaces with its own decoration.
var DecorativeSelectors = []string{".preview-header-image", ".preview-footer"}

// AcquireCaptureMode takes the region's exclusive capture mode and hides its
// decorative sub-elements. Both are released by the journal's Undo.
func AcquireCaptureMode(j *Journal, region *visual.Region, selectors []string) error {
	if !region.EnterCaptureMode() {
		return Wrap(KindCaptureFailure, "capture mode", fmt.Errorf("source %q: %w", region.ID, ErrBusy))
	}
	j.Do("leave capture mode", func() error {
		region.LeaveCaptureMode()
		return nil
	})
	for _, sel := range selectors {
		for _, n := range region.Root.QuerySelectorAll(sel) {
			j.Hide(n)
		}
	}
	return nil
}
