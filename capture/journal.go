package capture

import (
	"errors"
	"fmt"

	"github.com/zeptools/gw-docprint/visual"
)

type undoStep struct {
	desc string
	undo func() error
}

// Journal records every mutation applied to a live region and undoes them in
// reverse order. A Journal is owned by a single capture and is not safe for
// concurrent use.
type Journal struct {
	steps  []undoStep
	undone bool
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Len() int {
	return len(j.steps)
}

func (j *Journal) record(desc string, undo func() error) {
	j.steps = append(j.steps, undoStep{desc: desc, undo: undo})
}

// SetStyle sets an inline declaration and records the previous one, or its absence.
func (j *Journal) SetStyle(n *visual.Node, prop string, value string, important bool) {
	prev, had := n.Style.Get(prop)
	n.Style.Set(prop, value, important)
	j.record("style "+prop+" on <"+n.Tag+">", func() error {
		if had {
			n.Style.Set(prop, prev.Value, prev.Important)
		} else {
			n.Style.Remove(prop)
		}
		return nil
	})
}

// Hide sets display:none.
func (j *Journal) Hide(n *visual.Node) {
	j.SetStyle(n, "display", "none", false)
}

// ScrollTo moves the node's scroll offset.
func (j *Journal) ScrollTo(n *visual.Node, to visual.Point) {
	prev := n.Scroll
	n.Scroll = to
	j.record("scroll <"+n.Tag+">", func() error {
		n.Scroll = prev
		return nil
	})
}

// InsertBefore inserts child under parent before ref and records its removal.
func (j *Journal) InsertBefore(parent, child, ref *visual.Node) error {
	if err := parent.InsertBefore(child, ref); err != nil {
		return err
	}
	j.record("insert <"+child.Tag+">", func() error {
		p := child.Parent()
		if p == nil {
			return nil
		}
		return p.RemoveChild(child)
	})
	return nil
}

// Do records an arbitrary undo for a mutation the caller already applied.
func (j *Journal) Do(desc string, undo func() error) {
	j.record(desc, undo)
}

// Undo reverts every step in reverse order. Every step is attempted even
// when earlier ones fail; failures are joined. Undo runs once.
func (j *Journal) Undo() error {
	if j.undone {
		return nil
	}
	j.undone = true
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		if err := runStep(j.steps[i]); err != nil {
			errs = append(errs, err)
		}
	}
	j.steps = nil
	if len(errs) > 0 {
		return Wrap(KindRestoreFailure, "undo", errors.Join(errs...))
	}
	return nil
}

func runStep(s undoStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("undo %s: panic: %v", s.desc, r)
		}
	}()
	if err = s.undo(); err != nil {
		return fmt.Errorf("undo %s: %w", s.desc, err)
	}
	return nil
}
