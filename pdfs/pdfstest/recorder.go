// Package pdfstest provides an in-memory Composer that records every draw.
package pdfstest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zeptools/gw-docprint/pdfs"
)

type OpKind string

const (
	OpImage OpKind = "image"
	OpText  OpKind = "text"
	OpLine  OpKind = "line"
)

// Op is one recorded draw call.
type Op struct {
	Page    int
	Kind    OpKind
	Rect    pdfs.Rect // image target, or line endpoints as X,Y -> W,H
	Text    string
	X, Y    float64
	Style   pdfs.TextStyle
	Opacity float64
	Width   float64
	Gray    int
	Bytes   int
}

type Recorder struct {
	geometry pdfs.Geometry
	pages    []*pdfs.PageState
	current  int
	Ops      []Op
}

func NewRecorder(g pdfs.Geometry) *Recorder {
	return &Recorder{geometry: g}
}

func (r *Recorder) Geometry() pdfs.Geometry {
	return r.geometry
}

func (r *Recorder) PageSize() (float64, float64) {
	return r.geometry.PageSize()
}

func (r *Recorder) AddPage() *pdfs.PageState {
	p := pdfs.NewPageState(len(r.pages) + 1)
	r.pages = append(r.pages, p)
	r.current = p.Index()
	return p
}

func (r *Recorder) Pages() []*pdfs.PageState {
	out := make([]*pdfs.PageState, len(r.pages))
	copy(out, r.pages)
	return out
}

func (r *Recorder) SelectPage(index int) error {
	if index < 1 || index > len(r.pages) {
		return fmt.Errorf("page %d out of range 1..%d", index, len(r.pages))
	}
	r.current = index
	return nil
}

func (r *Recorder) Image(data []byte, rect pdfs.Rect, opacity float64) error {
	if r.current == 0 {
		return fmt.Errorf("no page selected")
	}
	r.Ops = append(r.Ops, Op{Page: r.current, Kind: OpImage, Rect: rect, Opacity: opacity, Bytes: len(data)})
	return nil
}

func (r *Recorder) Text(x, y float64, text string, style pdfs.TextStyle) {
	r.Ops = append(r.Ops, Op{Page: r.current, Kind: OpText, X: x, Y: y, Text: text, Style: style})
}

func (r *Recorder) Line(x1, y1, x2, y2, width float64, gray int) {
	r.Ops = append(r.Ops, Op{Page: r.current, Kind: OpLine, Rect: pdfs.Rect{X: x1, Y: y1, W: x2, H: y2}, Width: width, Gray: gray})
}

// OnPage returns the ops recorded on a 1-based page, optionally of one kind.
func (r *Recorder) OnPage(page int, kind OpKind) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Page == page && (kind == "" || op.Kind == kind) {
			out = append(out, op)
		}
	}
	return out
}

// Texts returns the strings drawn on a page in order.
func (r *Recorder) Texts(page int) []string {
	var out []string
	for _, op := range r.OnPage(page, OpText) {
		out = append(out, op.Text)
	}
	return out
}

func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%REC %s pages=%d ops=%d\n", r.geometry, len(r.pages), len(r.Ops))
	return buf.WriteTo(w)
}

func (r *Recorder) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	return buf.Bytes(), err
}

var _ pdfs.Composer = (*Recorder)(nil)
