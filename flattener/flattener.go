// Package flattener captures schedule (timeline) regions. The live timeline
// keeps its header and body in separately scrolling panes with sticky labels,
// so instead of expanding it in place a flat copy is synthesized and captured.
package flattener

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/raster"
	"github.com/zeptools/gw-docprint/vector"
	"github.com/zeptools/gw-docprint/visual"
)

const (
	TaskColumnWidth    = 280.0
	RowHeight          = 32.0
	HeaderHeight       = 55.0
	TitleHeight        = 48.0
	ControlsHeight     = 44.0
	DefaultHeaderWidth = 2266.0
	Scale              = 2.0

	HeaderSelector   = ".gantt-timeline svg"
	BodySelector     = ".gantt-body > svg"
	LabelSelector    = ".task-info"
	ControlsSelector = ".schedule-controls"

	rowBackground    = "#ffffff"
	rowBackgroundAlt = "#fafafa"
	activeBackground = "#4363d8"
)

var DefaultSettle = capture.SettlePolicy{Interval: 50 * time.Millisecond, Max: 300 * time.Millisecond}

type Flattener struct {
	Rasterizer  raster.Rasterizer
	Settle      capture.SettlePolicy
	LoadTimeout time.Duration
}

func New(r raster.Rasterizer) *Flattener {
	return &Flattener{Rasterizer: r, Settle: DefaultSettle, LoadTimeout: 5 * time.Second}
}

// Synthetic is the flat, detached copy of a schedule.
type Synthetic struct {
	Root      *visual.Node
	Header    *visual.Node // img holding the timeline header
	Body      *visual.Node // img holding the timeline body
	Labels    []string
	HeaderRef string
	BodyRef   string
	Width     float64
	Height    float64
}

// Synthesize reads the live schedule and builds its flat copy. The live
// region is only read.
func Synthesize(region *visual.Region) (*Synthetic, error) {
	if region == nil || region.Root == nil {
		return nil, capture.Errorf(capture.KindSourceUnavailable, "flatten", "no source region")
	}
	root := region.Root
	header := root.QuerySelector(HeaderSelector)
	body := root.QuerySelector(BodySelector)
	if header == nil || body == nil {
		return nil, capture.Errorf(capture.KindStructureIncomplete, "flatten",
			"schedule %q has no timeline header or body, load the schedule view first", region.ID)
	}

	var labels []string
	for _, n := range root.QuerySelectorAll(LabelSelector) {
		labels = append(labels, strings.TrimSpace(n.TextContent()))
	}

	headerRef, err := vector.DataURI(header)
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "serialize header", err)
	}
	bodyRef, err := vector.DataURI(body)
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "serialize body", err)
	}

	headerW := dimension(header.Box.W, header.Attr("width"), DefaultHeaderWidth)
	bodyW := dimension(body.Box.W, body.Attr("width"), DefaultHeaderWidth)
	bodyH := dimension(body.Box.H, body.Attr("height"), float64(len(labels))*RowHeight)

	s := &Synthetic{
		Labels:    labels,
		HeaderRef: headerRef,
		BodyRef:   bodyRef,
		Width:     TaskColumnWidth + math.Max(headerW, bodyW),
	}
	s.Root = block("div", "flat-schedule", 0, s.Width, 0)
	s.Root.Style.Set("background-color", rowBackground, false)
	s.Root.Style.Set("overflow", "visible", false)

	y := 0.0
	if h1 := root.QuerySelector("h1"); h1 != nil {
		if text := strings.TrimSpace(h1.TextContent()); text != "" {
			title := block("div", "flat-title", y, s.Width, TitleHeight)
			title.Text = text
			title.Style.Set("font-size", "20px", false)
			title.Style.Set("font-weight", "700", false)
			title.Style.Set("padding-left", "12px", false)
			title.Style.Set("padding-top", "12px", false)
			s.Root.AppendChild(title)
			y += TitleHeight
		}
	}
	if controls := root.QuerySelector(ControlsSelector); controls != nil {
		if band := controlBand(controls, y, s.Width); band != nil {
			s.Root.AppendChild(band)
			y += ControlsHeight
		}
	}

	headerRow := block("div", "flat-header", y, s.Width, HeaderHeight)
	caption := block("div", "flat-task-caption", 0, TaskColumnWidth, HeaderHeight)
	caption.Text = "Task (duration)"
	caption.Style.Set("font-weight", "700", false)
	caption.Style.Set("padding-left", "8px", false)
	caption.Style.Set("padding-top", "18px", false)
	caption.Style.Set("background-color", "#f5f5f5", false)
	caption.Style.Set("border-right", "1px solid #dddddd", false)
	caption.Style.Set("border-bottom", "1px solid #dddddd", false)
	headerRow.AppendChild(caption)
	s.Header = picture(headerRef, TaskColumnWidth, 0, headerW, HeaderHeight)
	headerRow.AppendChild(s.Header)
	s.Root.AppendChild(headerRow)
	y += HeaderHeight

	bodyArea := block("div", "flat-body", y, s.Width, bodyH)
	bodyArea.Style.Set("position", "relative", false)
	s.Body = picture(bodyRef, TaskColumnWidth, 0, bodyW, bodyH)
	s.Body.Style.Set("z-index", "0", false)
	bodyArea.AppendChild(s.Body)
	column := block("div", "flat-task-column", 0, TaskColumnWidth, bodyH)
	column.Style.Set("position", "absolute", false)
	column.Style.Set("left", "0px", false)
	column.Style.Set("top", "0px", false)
	column.Style.Set("z-index", "1", false)
	column.Style.Set("border-right", "1px solid #dddddd", false)
	for i, label := range labels {
		row := block("div", "flat-task-row", float64(i)*RowHeight, TaskColumnWidth, RowHeight)
		row.Text = label
		bg := rowBackground
		if i%2 == 1 {
			bg = rowBackgroundAlt
		}
		row.Style.Set("background-color", bg, false)
		row.Style.Set("padding-left", "8px", false)
		row.Style.Set("padding-top", "8px", false)
		row.Style.Set("font-size", "13px", false)
		row.Style.Set("border-bottom", "1px solid #eeeeee", false)
		column.AppendChild(row)
	}
	bodyArea.AppendChild(column)
	s.Root.AppendChild(bodyArea)
	y += bodyH

	s.Height = y
	s.Root.Box.H = y
	s.Root.Style.Set("height", px(y), false)
	return s, nil
}

// Flatten synthesizes the flat copy, mounts it off screen, captures it at
// Scale and detaches it again. The returned restore handle has nothing to
// undo; the live region is never touched.
func (f *Flattener) Flatten(ctx context.Context, region *visual.Region) (*capture.Assets, error) {
	s, err := Synthesize(region)
	if err != nil {
		return nil, err
	}

	host := visual.NewNode("div")
	host.Style = visual.ParseStyle("position: absolute; top: -99999px; left: 0px")
	host.AppendChild(s.Root)
	defer func() {
		if err := host.RemoveChild(s.Root); err != nil {
			log.Printf("[WARN][FLATTEN] detach: %v", err)
		}
	}()

	loads := []*raster.Pending{
		raster.Load(s.HeaderRef, int(math.Ceil(s.Header.Box.W*Scale)), int(math.Ceil(s.Header.Box.H*Scale))),
		raster.Load(s.BodyRef, int(math.Ceil(s.Body.Box.W*Scale)), int(math.Ceil(s.Body.Box.H*Scale))),
	}
	imgs := raster.WaitAll(ctx, f.LoadTimeout, loads)
	s.Header.Image, s.Body.Image = imgs[0], imgs[1]
	if err := ctx.Err(); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "load images", err)
	}

	if stable, err := capture.WaitStable(ctx, f.Settle, func() string {
		return raster.LayoutFingerprint(s.Root)
	}); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "settle", err)
	} else if !stable {
		log.Printf("[WARN][FLATTEN] %s: layout still moving after %v, capturing anyway", region.ID, f.Settle.Max)
	}

	r, err := f.capture(ctx, s)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO][FLATTEN] %s: %d rows captured %dx%d", region.ID, len(s.Labels), r.Width, r.Height)
	return capture.NewAssets(r, func() error { return nil }), nil
}

func (f *Flattener) capture(ctx context.Context, s *Synthetic) (r *raster.Raster, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, capture.Errorf(capture.KindCaptureFailure, "capture", "panic: %v", p)
		}
	}()
	r, err = f.Rasterizer.Capture(ctx, s.Root, raster.Options{Width: s.Width, Height: s.Height, Scale: Scale})
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "capture", err)
	}
	return r, nil
}

func controlBand(controls *visual.Node, y, width float64) *visual.Node {
	buttons := controls.QuerySelectorAll("button")
	if len(buttons) == 0 {
		return nil
	}
	band := block("div", "flat-controls", y, width, ControlsHeight)
	x := 12.0
	for _, b := range buttons {
		text := strings.TrimSpace(b.TextContent())
		w := math.Max(80, float64(len(text))*8+24)
		btn := block("div", "flat-control", 8, w, 28)
		btn.Box.X = x
		btn.Text = text
		btn.Style.Set("text-align", "center", false)
		btn.Style.Set("padding-top", "6px", false)
		btn.Style.Set("font-size", "13px", false)
		btn.Style.Set("border", "1px solid #cccccc", false)
		if b.HasClass("active") || b.Attr("aria-pressed") == "true" {
			btn.Classes = append(btn.Classes, "active")
			btn.Style.Set("background-color", activeBackground, false)
			btn.Style.Set("color", "#ffffff", false)
			btn.Style.Set("font-weight", "700", false)
		} else {
			btn.Style.Set("background-color", "#ffffff", false)
		}
		band.AppendChild(btn)
		x += w + 8
	}
	return band
}

func block(tag, class string, y, w, h float64) *visual.Node {
	n := visual.NewNode(tag)
	n.Classes = []string{class}
	n.Box = visual.Box{Y: y, W: w, H: h}
	n.Style.Set("width", px(w), false)
	n.Style.Set("height", px(h), false)
	return n
}

func picture(ref string, x, y, w, h float64) *visual.Node {
	n := visual.NewNode("img")
	n.SetAttr("src", ref)
	n.Box = visual.Box{X: x, Y: y, W: w, H: h}
	n.Style.Set("position", "absolute", false)
	n.Style.Set("left", px(x), false)
	n.Style.Set("top", px(y), false)
	n.Style.Set("width", px(w), false)
	n.Style.Set("height", px(h), false)
	return n
}

// dimension picks the measured size, else the graphic's own attribute, else
// the fallback.
func dimension(measured float64, attr string, fallback float64) float64 {
	if measured > 0 && !math.IsInf(measured, 0) {
		return measured
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(attr), "px"), 64); err == nil && v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return fallback
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
