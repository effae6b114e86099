package pdfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-pdf/fpdf"

	"github.com/zeptools/gw-docprint/rw"
)

// FPDFComposer is the Composer backed by go-pdf/fpdf. Units are mm.
type FPDFComposer struct {
	doc      *fpdf.Fpdf
	geometry Geometry
	pages    []*PageState
	current  int
	images   *TemplateStore[string] // content key -> registered image name
	tr       func(string) string
	MaxBytes int64 // output size cap, 0 for none
}

// DefaultMaxDocumentBytes caps a single generated document.
const DefaultMaxDocumentBytes = 256 << 20

func NewFPDFComposer(g Geometry) *FPDFComposer {
	w, h := g.PageSize()
	orientation := "P"
	if g.Orientation == Landscape {
		orientation = "L"
	}
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: min(w, h), Ht: max(w, h)},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	return &FPDFComposer{
		doc:      doc,
		geometry: g,
		images:   NewTemplateStore[string](),
		tr:       doc.UnicodeTranslatorFromDescriptor(""),
		MaxBytes: DefaultMaxDocumentBytes,
	}
}

func (c *FPDFComposer) Geometry() Geometry {
	return c.geometry
}

func (c *FPDFComposer) PageSize() (float64, float64) {
	w, h := c.doc.GetPageSize()
	return w, h
}

func (c *FPDFComposer) AddPage() *PageState {
	c.doc.AddPage()
	p := NewPageState(len(c.pages) + 1)
	c.pages = append(c.pages, p)
	c.current = p.Index()
	return p
}

func (c *FPDFComposer) Pages() []*PageState {
	out := make([]*PageState, len(c.pages))
	copy(out, c.pages)
	return out
}

// SelectPage makes the 1-based page current.
func (c *FPDFComposer) SelectPage(index int) error {
	if index < 1 || index > len(c.pages) {
		return fmt.Errorf("page %d out of range 1..%d", index, len(c.pages))
	}
	c.doc.SetPage(index)
	c.current = index
	return nil
}

func (c *FPDFComposer) Image(data []byte, r Rect, opacity float64) error {
	if c.current == 0 {
		return errors.New("no page selected")
	}
	name, err := c.register(data)
	if err != nil {
		return err
	}
	if opacity > 0 && opacity < 1 {
		c.doc.SetAlpha(opacity, "Normal")
		defer c.doc.SetAlpha(1, "Normal")
	}
	c.doc.ImageOptions(name, r.X, r.Y, r.W, r.H, false, fpdf.ImageOptions{}, 0, "")
	return c.doc.Error()
}

func (c *FPDFComposer) register(data []byte) (string, error) {
	key := ContentKey(data)
	if name, ok := c.images.Get(key); ok {
		return name, nil
	}
	var imageType string
	switch http.DetectContentType(data) {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg":
		imageType = "JPG"
	default:
		return "", errors.New("image is neither PNG nor JPEG")
	}
	name := "img-" + key
	c.doc.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if err := c.doc.Error(); err != nil {
		return "", fmt.Errorf("register image: %w", err)
	}
	c.images.Store(key, name)
	return name, nil
}

func (c *FPDFComposer) Text(x, y float64, text string, style TextStyle) {
	text = c.tr(text)
	family := style.Family
	if family == "" {
		family = "Helvetica"
	}
	fontStyle := ""
	if style.Bold {
		fontStyle = "B"
	}
	c.doc.SetFont(family, fontStyle, style.Size)
	c.doc.SetTextColor(style.Gray, style.Gray, style.Gray)
	if style.Opacity > 0 && style.Opacity < 1 {
		c.doc.SetAlpha(style.Opacity, "Normal")
		defer c.doc.SetAlpha(1, "Normal")
	}

	if style.Angle != 0 {
		c.doc.TransformBegin()
		c.doc.TransformRotate(style.Angle, x, y)
		defer c.doc.TransformEnd()
	}
	switch style.Align {
	case AlignCenter:
		x -= c.doc.GetStringWidth(text) / 2
	case AlignRight:
		x -= c.doc.GetStringWidth(text)
	}
	c.doc.Text(x, y, text)
}

func (c *FPDFComposer) Line(x1, y1, x2, y2, width float64, gray int) {
	c.doc.SetLineWidth(width)
	c.doc.SetDrawColor(gray, gray, gray)
	c.doc.Line(x1, y1, x2, y2)
}

func (c *FPDFComposer) WriteTo(w io.Writer) (int64, error) {
	cw := rw.NewLimitWriter(w, c.MaxBytes)
	if err := c.doc.Output(cw); err != nil {
		if errors.Is(err, rw.ErrLimitExceeded) {
			return cw.BytesWritten(), fmt.Errorf("document larger than %d bytes: %w", c.MaxBytes, err)
		}
		return cw.BytesWritten(), err
	}
	return cw.BytesWritten(), nil
}

func (c *FPDFComposer) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
