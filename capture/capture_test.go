package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-docprint/visual"
)

func TestJournalUndoesInReverse(t *testing.T) {
	n := visual.NewNode("div")
	n.Style = visual.ParseStyle("overflow: auto; width: 300px")
	before := n.Style.String()

	j := NewJournal()
	j.SetStyle(n, "overflow", "visible", true)
	j.SetStyle(n, "overflow", "hidden", false)
	j.SetStyle(n, "height", "auto", true)
	j.ScrollTo(n, visual.Point{})
	require.Equal(t, 4, j.Len())

	require.NoError(t, j.Undo())
	assert.Equal(t, before, n.Style.String())
	_, had := n.Style.Get("height")
	assert.False(t, had)
}

func TestJournalUndoOrder(t *testing.T) {
	var order []int
	j := NewJournal()
	for i := 0; i < 3; i++ {
		j.Do("step "+strconv.Itoa(i), func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, j.Undo())
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestJournalUndoAttemptsEveryStep(t *testing.T) {
	ran := 0
	j := NewJournal()
	j.Do("first", func() error { ran++; return nil })
	j.Do("panics", func() error { panic("boom") })
	j.Do("fails", func() error { ran++; return errors.New("detached") })

	err := j.Undo()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestoreFailure)
	assert.Equal(t, 2, ran)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.Contains(t, err.Error(), "detached")

	assert.NoError(t, j.Undo(), "undo runs once")
	assert.Equal(t, 2, ran)
}

func TestJournalInsertBefore(t *testing.T) {
	parent := visual.NewNode("div")
	svg := visual.NewNode("svg")
	parent.AppendChild(svg)
	img := visual.NewNode("img")

	j := NewJournal()
	require.NoError(t, j.InsertBefore(parent, img, svg))
	assert.Equal(t, []*visual.Node{img, svg}, parent.Children)

	require.NoError(t, j.Undo())
	assert.Equal(t, []*visual.Node{svg}, parent.Children)
	assert.Nil(t, img.Parent())
}

func TestAssetsRestoreOnce(t *testing.T) {
	calls := 0
	a := NewAssets(nil, func() error {
		calls++
		return fmt.Errorf("call %d", calls)
	})
	assert.False(t, a.Restored())
	err1 := a.Restore()
	err2 := a.Restore()
	assert.Equal(t, 1, calls)
	assert.Same(t, err1, err2)
	assert.True(t, a.Restored())
}

func TestCaptureModeExclusive(t *testing.T) {
	root := visual.NewNode("div")
	header := visual.NewNode("div")
	header.Classes = []string{"preview-header-image"}
	root.AppendChild(header)
	region := &visual.Region{ID: "offer", Class: visual.ClassDocument, Root: root}

	j := NewJournal()
	require.NoError(t, AcquireCaptureMode(j, region, DecorativeSelectors))
	assert.True(t, header.Hidden())
	assert.True(t, region.InCaptureMode())

	err := AcquireCaptureMode(NewJournal(), region, DecorativeSelectors)
	assert.ErrorIs(t, err, ErrCaptureFailure)

	require.NoError(t, j.Undo())
	assert.False(t, header.Hidden())
	assert.False(t, region.InCaptureMode())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("generate: %w", Errorf(KindStructureIncomplete, "flatten", "missing %s", ".gantt-body > svg"))
	assert.ErrorIs(t, err, ErrStructureIncomplete)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, KindStructureIncomplete, KindOf(err))
	assert.Equal(t, "Schedule elements not found. Please load the schedule view first.", UserMessage(err))

	assert.Equal(t, KindCaptureFailure, KindOf(errors.New("foreign")))
	assert.Equal(t, "Error generating PDF. Please try again.", UserMessage(errors.New("foreign")))
}

func TestMarkRestored(t *testing.T) {
	assert.NoError(t, MarkRestored(nil))

	err := MarkRestored(fmt.Errorf("normalize: %w", Errorf(KindCaptureFailure, "capture", "canvas tainted")))
	assert.True(t, WasRestored(err))
	assert.ErrorIs(t, err, ErrCaptureFailure)

	foreign := MarkRestored(errors.New("renderer crashed"))
	assert.True(t, WasRestored(foreign))
	assert.Equal(t, KindCaptureFailure, KindOf(foreign))

	assert.False(t, WasRestored(Errorf(KindSourceUnavailable, "generate", "gone")))
	assert.False(t, WasRestored(errors.New("plain")))
}

func TestWaitStable(t *testing.T) {
	p := SettlePolicy{Interval: 5 * time.Millisecond, Max: time.Second}

	n := 0
	stable, err := WaitStable(context.Background(), p, func() string {
		n++
		if n < 3 {
			return strconv.Itoa(n)
		}
		return "settled"
	})
	require.NoError(t, err)
	assert.True(t, stable)
	assert.Equal(t, 4, n)

	m := 0
	stable, err = WaitStable(context.Background(), SettlePolicy{Interval: 5 * time.Millisecond, Max: 30 * time.Millisecond}, func() string {
		m++
		return strconv.Itoa(m)
	})
	require.NoError(t, err)
	assert.False(t, stable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WaitStable(ctx, p, func() string { return "x" })
	assert.ErrorIs(t, err, context.Canceled)
}
