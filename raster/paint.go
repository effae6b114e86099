package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/zeptools/gw-docprint/vector"
	"github.com/zeptools/gw-docprint/visual"
)

const defaultFontSize = 14

// Painter is the box-model Rasterizer. It paints backgrounds, borders,
// decoded images, live vector graphics and single-line text.
type Painter struct {
	MaxDimension int
}

func NewPainter() *Painter {
	return &Painter{MaxDimension: MaxDimension}
}

func (p *Painter) Capture(ctx context.Context, root *visual.Node, opts Options) (*Raster, error) {
	if root == nil {
		return nil, errors.New("raster: nil root")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	l := layoutTree(root, opts.Width)
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = l.right
	}
	if h <= 0 {
		h = l.bottom
	}
	pw, ph := int(math.Ceil(w*scale)), int(math.Ceil(h*scale))
	if pw <= 0 || ph <= 0 {
		return nil, fmt.Errorf("raster: empty capture %dx%d", pw, ph)
	}
	limit := p.MaxDimension
	if limit <= 0 {
		limit = MaxDimension
	}
	if pw > limit || ph > limit {
		return nil, fmt.Errorf("raster: capture %dx%d exceeds %d px", pw, ph, limit)
	}

	faces, err := newFaceCache()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	var bg color.Color = color.White
	if opts.Background != nil {
		bg = opts.Background
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	c := &canvas{dst: dst, scale: scale, faces: faces}
	for i, it := range l.items {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c.paint(it)
	}
	return &Raster{Image: dst, Width: pw, Height: ph}, nil
}

type canvas struct {
	dst   *image.RGBA
	scale float64
	faces *faceCache
}

func (c *canvas) device(r rect) image.Rectangle {
	if math.IsInf(r.X0, 0) || math.IsInf(r.X1, 0) {
		return c.dst.Bounds()
	}
	return image.Rect(
		int(math.Floor(r.X0*c.scale)), int(math.Floor(r.Y0*c.scale)),
		int(math.Ceil(r.X1*c.scale)), int(math.Ceil(r.Y1*c.scale)),
	)
}

func (c *canvas) clipped(clip rect) *image.RGBA {
	sub, _ := c.dst.SubImage(c.device(clip).Intersect(c.dst.Bounds())).(*image.RGBA)
	return sub
}

func (c *canvas) paint(it item) {
	n := it.node
	target := c.clipped(it.clip)
	if target == nil || target.Bounds().Empty() {
		return
	}
	dr := c.device(it.rect)

	if col, ok := backgroundOf(n); ok {
		draw.Draw(target, dr.Intersect(target.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
	}
	c.borders(target, n, dr)

	switch {
	case n.Tag == "img" && n.Image != nil:
		xdraw.ApproxBiLinear.Scale(target, dr, n.Image, n.Image.Bounds(), draw.Over, nil)
	case n.IsVector():
		c.vector(target, n, dr)
	}

	if text := strings.TrimSpace(n.Text); text != "" && !n.IsVector() {
		c.text(target, n, it.rect, text)
	}
}

func backgroundOf(n *visual.Node) (color.RGBA, bool) {
	if col, ok := ParseColor(n.Computed("background-color")); ok {
		return col, true
	}
	return ParseColor(n.Computed("background"))
}

func (c *canvas) borders(target *image.RGBA, n *visual.Node, dr image.Rectangle) {
	all := n.Computed("border")
	for _, side := range []string{"top", "right", "bottom", "left"} {
		v := n.Computed("border-" + side)
		if v == "" {
			v = all
		}
		if v == "" {
			continue
		}
		width, col, ok := parseBorder(v)
		if !ok {
			continue
		}
		t := int(math.Max(1, math.Round(width*c.scale)))
		var r image.Rectangle
		switch side {
		case "top":
			r = image.Rect(dr.Min.X, dr.Min.Y, dr.Max.X, dr.Min.Y+t)
		case "right":
			r = image.Rect(dr.Max.X-t, dr.Min.Y, dr.Max.X, dr.Max.Y)
		case "bottom":
			r = image.Rect(dr.Min.X, dr.Max.Y-t, dr.Max.X, dr.Max.Y)
		case "left":
			r = image.Rect(dr.Min.X, dr.Min.Y, dr.Min.X+t, dr.Max.Y)
		}
		draw.Draw(target, r.Intersect(target.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
	}
}

func (c *canvas) vector(target *image.RGBA, n *visual.Node, dr image.Rectangle) {
	if dr.Empty() {
		return
	}
	data, err := vector.Serialize(vector.Purify(n))
	if err != nil {
		log.Printf("[WARN][RASTER] serialize vector %q: %v", n.ID, err)
		return
	}
	img, err := DecodeSVG(data, dr.Dx(), dr.Dy())
	if err != nil {
		log.Printf("[WARN][RASTER] draw vector %q: %v", n.ID, err)
		return
	}
	draw.Draw(target, dr, img, img.Bounds().Min, draw.Over)
}

func (c *canvas) text(target *image.RGBA, n *visual.Node, r rect, text string) {
	size := defaultFontSize * 1.0
	if v, ok := pxLength(n.Computed("font-size")); ok && v > 0 {
		size = v
	}
	face, err := c.faces.face(n.Weight() >= 600, size*c.scale)
	if err != nil {
		log.Printf("[WARN][RASTER] font face: %v", err)
		return
	}
	col, ok := ParseColor(n.Computed("color"))
	if !ok {
		col = color.RGBA{A: 255}
	}
	padL, _ := pxLength(n.Computed("padding-left"))
	padT, _ := pxLength(n.Computed("padding-top"))

	d := &font.Drawer{Dst: target, Src: image.NewUniform(col), Face: face}
	x := (r.X0 + padL) * c.scale
	if n.Computed("text-align") == "center" {
		adv := float64(d.MeasureString(text)) / 64
		x = (r.X0+r.X1)/2*c.scale - adv/2
	}
	ascent := float64(face.Metrics().Ascent) / 64
	y := (r.Y0+padT)*c.scale + ascent
	d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
	d.DrawString(text)
}
