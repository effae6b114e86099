// Package compositor drives a generation request: capture, fit, restore,
// decorate, name and persist.
package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/decor"
	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/visual"
)

// DocumentCapturer captures document regions in place.
type DocumentCapturer interface {
	Normalize(ctx context.Context, region *visual.Region, printableWidthMM float64) (*capture.Assets, error)
}

// ScheduleCapturer captures schedule regions from a synthetic copy.
type ScheduleCapturer interface {
	Flatten(ctx context.Context, region *visual.Region) (*capture.Assets, error)
}

// Sink stores a finished artifact and returns its location.
type Sink interface {
	Persist(ctx context.Context, a *Artifact) (string, error)
}

// Ledger records the outcome of every request.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
}

// Entry is one ledger line.
type Entry struct {
	SourceID string
	Class    visual.SourceClass
	Name     string
	Pages    int
	Location string
	State    State
	Err      error
	At       time.Time
}

type Compositor struct {
	Registry     *visual.Registry
	Documents    DocumentCapturer
	Schedules    ScheduleCapturer
	Assets       *decor.Assets
	Sink         Sink
	Ledger       Ledger                             // optional
	NewComposer  func(pdfs.Geometry) pdfs.Composer // nil uses fpdf
	OnTransition func(Transition)                   // optional
}

// Generate renders the request and persists the artifact through the sink.
func (c *Compositor) Generate(ctx context.Context, req Request) (*Artifact, error) {
	return c.run(ctx, req, true)
}

// Render renders the request without persisting it.
func (c *Compositor) Render(ctx context.Context, req Request) (*Artifact, error) {
	return c.run(ctx, req, false)
}

// plan is the resolved strategy for one request.
type plan struct {
	class     visual.SourceClass
	geometry  pdfs.Geometry
	margins   pdfs.Margins
	printable pdfs.Rect
}

func resolve(req Request, region *visual.Region) plan {
	p := plan{class: req.Class}
	if p.class == visual.ClassUnknown {
		p.class = region.Class
	}
	if p.class == visual.ClassUnknown {
		p.class = visual.ClassDocument
	}
	if p.class == visual.ClassSchedule {
		p.geometry, p.margins = pdfs.ScheduleGeometry, pdfs.ScheduleMargins
	} else {
		p.geometry, p.margins = pdfs.DefaultGeometry, pdfs.DocumentMargins
		if req.Geometry != nil {
			p.geometry = *req.Geometry
		}
	}
	p.printable = pdfs.Printable(p.geometry, p.margins)
	return p
}

func (c *Compositor) run(ctx context.Context, req Request, persist bool) (art *Artifact, err error) {
	t := &tracker{sourceID: req.SourceID, hook: c.OnTransition}
	var p plan
	defer func() {
		if r := recover(); r != nil {
			art, err = nil, capture.Errorf(capture.KindCaptureFailure, "generate", "panic: %v", r)
		}
		if err != nil {
			t.fail(err)
		}
		c.record(ctx, req, p, t.state, art, err)
	}()

	region, ok := c.Registry.Lookup(req.SourceID)
	if !ok || region.Root == nil {
		return nil, capture.Errorf(capture.KindSourceUnavailable, "generate", "source %q is not registered", req.SourceID)
	}
	p = resolve(req, region)
	if p.printable.W <= 0 || p.printable.H <= 0 {
		return nil, capture.Errorf(capture.KindCaptureFailure, "generate", "no printable area on %s", p.geometry)
	}
	t.to(StateValidated)

	t.to(StateCapturing)
	assets, err := c.capture(ctx, region, p)
	if err != nil {
		if capture.WasRestored(err) {
			t.to(StateRestoring)
		}
		return nil, err
	}
	defer c.restore(t, req.SourceID, assets)

	raster := assets.Raster
	if raster == nil || raster.Image == nil || raster.Width <= 0 || raster.Height <= 0 {
		c.restore(t, req.SourceID, assets)
		return nil, capture.Errorf(capture.KindCaptureFailure, "generate", "empty capture")
	}
	var encoded bytes.Buffer
	encErr := png.Encode(&encoded, raster.Image)
	// the raster has been read; the source goes back now
	c.restore(t, req.SourceID, assets)
	if encErr != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "encode capture", encErr)
	}

	composer := c.composer(p.geometry)
	page := composer.AddPage()
	placement := pdfs.Fit(p.printable, float64(raster.Width), float64(raster.Height))
	page.SetPlacement(placement)
	if err := composer.Image(encoded.Bytes(), placement, 1); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "place capture", err)
	}

	t.to(StateDecorating)
	d := &decor.Decorator{Assets: c.Assets, Margins: p.margins}
	if err := d.DecorateAll(composer, req.WatermarkLabels); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "decorate", err)
	}
	data, err := composer.ProduceBytes()
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "write document", err)
	}

	art = &Artifact{
		Name:      req.Name(),
		Data:      data,
		Pages:     len(composer.Pages()),
		SourceID:  req.SourceID,
		Class:     p.class,
		Geometry:  p.geometry,
		CreatedAt: time.Now(),
	}
	if !persist {
		t.to(StateRendered)
		return art, nil
	}
	if c.Sink == nil {
		return nil, capture.Errorf(capture.KindCaptureFailure, "persist", "no sink configured")
	}
	loc, err := c.Sink.Persist(ctx, art)
	if err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "persist", fmt.Errorf("%s: %w", art.Name, err))
	}
	art.Location = loc
	t.to(StatePersisted)
	log.Printf("[INFO][EXPORT] %s: %s (%d pages, %d bytes) -> %s", req.SourceID, art.Name, art.Pages, len(art.Data), loc)
	return art, nil
}

func (c *Compositor) capture(ctx context.Context, region *visual.Region, p plan) (*capture.Assets, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.Wrap(capture.KindCaptureFailure, "generate", err)
	}
	if p.class == visual.ClassSchedule {
		if c.Schedules == nil {
			return nil, capture.Errorf(capture.KindCaptureFailure, "generate", "no schedule capturer")
		}
		return c.Schedules.Flatten(ctx, region)
	}
	if c.Documents == nil {
		return nil, capture.Errorf(capture.KindCaptureFailure, "generate", "no document capturer")
	}
	return c.Documents.Normalize(ctx, region, p.printable.W)
}

// restore runs the assets' restore handle the first time it is called. A
// restore failure is logged and never replaces the request's own outcome.
func (c *Compositor) restore(t *tracker, sourceID string, assets *capture.Assets) {
	if assets.Restored() {
		return
	}
	if t.state == StateCapturing {
		t.to(StateRestoring)
	}
	if err := assets.Restore(); err != nil {
		log.Printf("[ERROR][EXPORT] %s: %s: %v", sourceID, capture.KindRestoreFailure, err)
	}
}

func (c *Compositor) composer(g pdfs.Geometry) pdfs.Composer {
	if c.NewComposer != nil {
		return c.NewComposer(g)
	}
	return pdfs.NewFPDFComposer(g)
}

func (c *Compositor) record(ctx context.Context, req Request, p plan, state State, art *Artifact, err error) {
	if c.Ledger == nil {
		return
	}
	e := Entry{SourceID: req.SourceID, Class: p.class, Name: req.Name(), State: state, Err: err, At: time.Now()}
	if art != nil {
		e.Name, e.Pages, e.Location = art.Name, art.Pages, art.Location
	}
	if lerr := c.Ledger.Record(context.WithoutCancel(ctx), e); lerr != nil {
		log.Printf("[WARN][EXPORT] %s: ledger: %v", req.SourceID, lerr)
	}
}
