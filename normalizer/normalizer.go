// Package normalizer expands a live document region so its full content is
// visible, captures it as one raster, and hands back a handle that puts the
// region back exactly as it was.
package normalizer

import (
	"context"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/raster"
	"github.com/zeptools/gw-docprint/vector"
	"github.com/zeptools/gw-docprint/visual"
)

const (
	MaxCaptureWidth = 6000 // px
	PxPerMM         = 3.78
)

var DefaultSettle = capture.SettlePolicy{Interval: 50 * time.Millisecond, Max: 200 * time.Millisecond}

const DefaultLoadTimeout = 5 * time.Second

type Normalizer struct {
	Rasterizer  raster.Rasterizer
	Settle      capture.SettlePolicy
	LoadTimeout time.Duration
	Decorative  []string // selectors hidden while capturing
}

func New(r raster.Rasterizer) *Normalizer {
	return &Normalizer{
		Rasterizer:  r,
		Settle:      DefaultSettle,
		LoadTimeout: DefaultLoadTimeout,
		Decorative:  capture.DecorativeSelectors,
	}
}

// CaptureWidth is the root width used for capture: wide enough for the
// printable area at screen density and for the content, never above the cap.
func CaptureWidth(printableWidthMM, naturalWidth float64) float64 {
	return math.Min(MaxCaptureWidth, math.Max(printableWidthMM*PxPerMM, naturalWidth))
}

// Normalize captures region. On success the returned Assets' Restore undoes
// every mutation. On failure the region is restored before returning.
func (nz *Normalizer) Normalize(ctx context.Context, region *visual.Region, printableWidthMM float64) (assets *capture.Assets, err error) {
	if region == nil || region.Root == nil {
		return nil, capture.Errorf(capture.KindSourceUnavailable, "normalize", "no source region")
	}
	root := region.Root
	if !root.Bounded() {
		return nil, capture.Errorf(capture.KindSourceUnavailable, "normalize", "source %q has no finite extent", region.ID)
	}

	j := capture.NewJournal()
	defer func() {
		if r := recover(); r != nil {
			err = capture.Errorf(capture.KindCaptureFailure, "normalize", "panic: %v", r)
		}
		if err != nil {
			assets = nil
			mutated := j.Len() > 0
			if uerr := j.Undo(); uerr != nil {
				log.Printf("[ERROR][NORMALIZE] %s: %v", region.ID, uerr)
			}
			if mutated {
				err = capture.MarkRestored(err)
			}
		}
	}()

	if err := capture.AcquireCaptureMode(j, region, nz.Decorative); err != nil {
		return nil, err
	}

	naturalW := root.NaturalWidth()
	j.SetStyle(root, "overflow", "visible", true)
	j.SetStyle(root, "height", "auto", true)
	expand(j, root)

	width := CaptureWidth(printableWidthMM, naturalW)
	j.SetStyle(root, "width", pxString(width), true)
	resetScroll(j, root)

	placeholders, loads := replaceVectors(j, root)
	for i, img := range raster.WaitAll(ctx, nz.LoadTimeout, loads) {
		placeholders[i].Image = img
	}
	if err := ctx.Err(); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "load images", err)
	}

	stable, err := capture.WaitStable(ctx, nz.Settle, func() string {
		return raster.LayoutFingerprint(root)
	})
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "settle", err)
	}
	if !stable {
		log.Printf("[WARN][NORMALIZE] %s: layout still moving after %v, capturing anyway", region.ID, nz.Settle.Max)
	}

	r, err := nz.Rasterizer.Capture(ctx, root, raster.Options{Width: width, Scale: 1})
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "capture", err)
	}
	log.Printf("[INFO][NORMALIZE] %s: captured %dx%d, %d mutations", region.ID, r.Width, r.Height, j.Len())
	return capture.NewAssets(r, j.Undo), nil
}

// visit walks the subtree below n without entering vector graphics.
func visit(n *visual.Node, fn func(*visual.Node)) {
	for _, c := range n.Children {
		fn(c)
		if !c.IsVector() {
			visit(c, fn)
		}
	}
}

func expand(j *capture.Journal, root *visual.Node) {
	visit(root, func(n *visual.Node) {
		if n.IsVector() {
			return
		}
		if n.Clips() || n.Natural.W > n.Box.W || n.Computed("position") == "sticky" {
			j.SetStyle(n, "overflow", "visible", true)
			j.SetStyle(n, "width", "auto", true)
			j.SetStyle(n, "max-width", "none", true)
			j.SetStyle(n, "min-width", "0px", true)
			j.SetStyle(n, "flex", "0 0 auto", true)
			j.SetStyle(n, "position", "relative", true)
			j.SetStyle(n, "z-index", "auto", true)
		}
		switch n.Tag {
		case "li", "ul", "ol":
			j.SetStyle(n, "list-style-position", "inside", true)
			j.SetStyle(n, "line-height", "1.4", true)
		}
		if n.Tag == "strong" || n.Tag == "b" || n.Weight() >= 600 {
			j.SetStyle(n, "font-weight", "700", true)
		}
	})
}

func resetScroll(j *capture.Journal, root *visual.Node) {
	root.Walk(func(n *visual.Node) bool {
		if n.Scroll != (visual.Point{}) {
			j.ScrollTo(n, visual.Point{})
		}
		return true
	})
}

// replaceVectors puts a raster placeholder in front of every top-level
// vector graphic and hides the graphic. A graphic that cannot be serialized
// is logged and left as it is.
func replaceVectors(j *capture.Journal, root *visual.Node) ([]*visual.Node, []*raster.Pending) {
	var svgs []*visual.Node
	visit(root, func(n *visual.Node) {
		if n.IsVector() && !n.Hidden() {
			svgs = append(svgs, n)
		}
	})

	var placeholders []*visual.Node
	var loads []*raster.Pending
	for _, svg := range svgs {
		parent := svg.Parent()
		if parent == nil {
			continue
		}
		uri, err := vector.DataURI(svg)
		if err != nil {
			log.Printf("[WARN][NORMALIZE] vector %q left in place: %v", svg.ID, err)
			continue
		}
		img := placeholderFor(svg, uri)
		if err := j.InsertBefore(parent, img, svg); err != nil {
			log.Printf("[WARN][NORMALIZE] vector %q left in place: %v", svg.ID, err)
			continue
		}
		j.Hide(svg)
		placeholders = append(placeholders, img)
		loads = append(loads, raster.Load(uri, int(math.Ceil(svg.Box.W)), int(math.Ceil(svg.Box.H))))
	}
	return placeholders, loads
}

func placeholderFor(svg *visual.Node, uri string) *visual.Node {
	img := visual.NewNode("img")
	img.SetAttr("src", uri)
	img.Box = svg.Box
	img.Natural = visual.Size{W: svg.Box.W, H: svg.Box.H}
	for _, prop := range []string{"position", "left", "top", "z-index"} {
		img.Style.Set(prop, svg.Computed(prop), false)
	}
	img.Style.Set("width", pxString(svg.Box.W), false)
	img.Style.Set("height", pxString(svg.Box.H), false)
	img.Style.Set("display", "block", false)
	return img
}

func pxString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
