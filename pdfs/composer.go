package pdfs

import "io"

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// TextStyle describes one text draw. Gray is 0-255, Angle is degrees
// counter-clockwise around the anchor point.
type TextStyle struct {
	Family  string
	Bold    bool
	Size    float64
	Gray    int
	Opacity float64 // 0 means opaque
	Angle   float64
	Align   Align
}

// Composer builds a paged document. Pages are append-only; drawing goes to
// the selected page.
type Composer interface {
	Geometry() Geometry
	PageSize() (float64, float64)

	AddPage() *PageState
	Pages() []*PageState
	SelectPage(index int) error

	// Image draws encoded PNG or JPEG bytes into r. Equal bytes are embedded once.
	Image(data []byte, r Rect, opacity float64) error
	Text(x, y float64, text string, style TextStyle)
	Line(x1, y1, x2, y2, width float64, gray int)

	WriteTo(w io.Writer) (int64, error)
	ProduceBytes() ([]byte, error)
}
