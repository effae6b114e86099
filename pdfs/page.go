package pdfs

import (
	"errors"
	"fmt"
)

var ErrAlreadyDecorated = errors.New("page already decorated")

// PageState tracks one page of a composed document.
type PageState struct {
	index     int
	placement *Rect
	decorated bool
}

func NewPageState(index int) *PageState {
	return &PageState{index: index}
}

// Index is 1-based.
func (p *PageState) Index() int {
	return p.index
}

// Placement is where the captured content sits, nil on pages without content.
func (p *PageState) Placement() *Rect {
	return p.placement
}

func (p *PageState) SetPlacement(r Rect) {
	p.placement = &r
}

func (p *PageState) Decorated() bool {
	return p.decorated
}

// MarkDecorated flags the page. A page is decorated at most once.
func (p *PageState) MarkDecorated() error {
	if p.decorated {
		return fmt.Errorf("page %d: %w", p.index, ErrAlreadyDecorated)
	}
	p.decorated = true
	return nil
}
