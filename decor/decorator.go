// Package decor draws the fixed page furniture: watermark image, tiled
// label text, header logo, page number and footer.
package decor

import (
	"errors"
	"fmt"
	"log"

	"github.com/zeptools/gw-docprint/pdfs"
)

const (
	WatermarkOpacity     = 0.08
	LabelOpacity         = 0.05
	LabelGray            = 150
	LabelAngle           = -45.0
	LabelStartX          = 20.0
	LabelStartY          = 20.0
	LabelStepX           = 120.0
	LabelStepY           = 80.0
	LogoY                = 8.0
	LogoAspect           = 20.0 / 150.0
	PageNumberSize       = 9.0
	PageNumberGray       = 150
	FooterRuleFromBottom = 20.0
	FooterRuleWidth      = 0.2
	FooterSize           = 8.0
	FooterGray           = 100
)

// Decorator is stateless apart from the shared read-only assets.
type Decorator struct {
	Assets  *Assets
	Margins pdfs.Margins
}

func labelSize(g pdfs.Geometry) float64 {
	if g.Format.Large() {
		return 42
	}
	return 32
}

func watermarkScale(g pdfs.Geometry) float64 {
	if g.Format.Large() {
		return 0.5
	}
	return 1
}

// Decorate draws the decoration on page, which is page.Index() of total.
// A page is decorated once; a second call fails without drawing.
func (d *Decorator) Decorate(c pdfs.Composer, page *pdfs.PageState, total int, labels []string) error {
	if page == nil {
		return errors.New("decorate: nil page")
	}
	if err := c.SelectPage(page.Index()); err != nil {
		return fmt.Errorf("decorate: %w", err)
	}
	if err := page.MarkDecorated(); err != nil {
		return err
	}
	a := d.Assets
	if a == nil {
		a = &Assets{}
	}
	g := c.Geometry()
	w, h := c.PageSize()
	side := d.Margins.Side

	if a.Watermark != nil {
		ww := (w - 40) * watermarkScale(g)
		r := pdfs.Rect{X: (w - ww) / 2, Y: (h - ww) / 2, W: ww, H: ww}
		if err := c.Image(a.Watermark, r, WatermarkOpacity); err != nil {
			log.Printf("[WARN][DECOR] page %d watermark skipped: %v", page.Index(), err)
		}
	}

	if len(labels) > 0 {
		style := pdfs.TextStyle{
			Family:  "Helvetica",
			Bold:    true,
			Size:    labelSize(g),
			Gray:    LabelGray,
			Opacity: LabelOpacity,
			Angle:   LabelAngle,
			Align:   pdfs.AlignCenter,
		}
		i := 0
		for y := LabelStartY; y < h; y += LabelStepY {
			for x := LabelStartX; x < w; x += LabelStepX {
				c.Text(x, y, labels[i%len(labels)], style)
				i++
			}
		}
	}

	if a.Logo != nil {
		lw := w - 2*side
		if err := c.Image(a.Logo, pdfs.Rect{X: side, Y: LogoY, W: lw, H: lw * LogoAspect}, 1); err != nil {
			log.Printf("[WARN][DECOR] page %d logo skipped: %v", page.Index(), err)
		}
	}

	c.Text(w-side-10, h-10, fmt.Sprintf("Page %d of %d", page.Index(), total),
		pdfs.TextStyle{Family: "Helvetica", Size: PageNumberSize, Gray: PageNumberGray})

	c.Line(side, h-FooterRuleFromBottom, w-side, h-FooterRuleFromBottom, FooterRuleWidth, 0)
	footer := pdfs.TextStyle{Family: "Helvetica", Size: FooterSize, Gray: FooterGray, Align: pdfs.AlignCenter}
	for i, y := range []float64{h - 13, h - 9} {
		if a.FooterLines[i] != "" {
			c.Text(w/2, y, a.FooterLines[i], footer)
		}
	}
	return nil
}

// DecorateAll decorates every page of the composer.
func (d *Decorator) DecorateAll(c pdfs.Composer, labels []string) error {
	pages := c.Pages()
	for _, p := range pages {
		if err := d.Decorate(c, p, len(pages), labels); err != nil {
			return err
		}
	}
	return nil
}
