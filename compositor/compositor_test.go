package compositor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/decor"
	"github.com/zeptools/gw-docprint/flattener"
	"github.com/zeptools/gw-docprint/normalizer"
	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/pdfs/pdfstest"
	"github.com/zeptools/gw-docprint/raster"
	"github.com/zeptools/gw-docprint/visual"
)

type fakeCapturer struct {
	w, h       int
	err        error
	restoreErr error
	restores   int
	calls      int
	printable  float64
}

func (f *fakeCapturer) assets() (*capture.Assets, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := &raster.Raster{Image: image.NewRGBA(image.Rect(0, 0, f.w, f.h)), Width: f.w, Height: f.h}
	return capture.NewAssets(r, func() error {
		f.restores++
		return f.restoreErr
	}), nil
}

func (f *fakeCapturer) Normalize(_ context.Context, _ *visual.Region, printableWidthMM float64) (*capture.Assets, error) {
	f.printable = printableWidthMM
	return f.assets()
}

func (f *fakeCapturer) Flatten(_ context.Context, _ *visual.Region) (*capture.Assets, error) {
	return f.assets()
}

type memorySink struct {
	got []*Artifact
	err error
}

func (s *memorySink) Persist(_ context.Context, a *Artifact) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.got = append(s.got, a)
	return "mem://" + a.Name, nil
}

type memoryLedger struct {
	entries []Entry
}

func (l *memoryLedger) Record(_ context.Context, e Entry) error {
	l.entries = append(l.entries, e)
	return nil
}

type harness struct {
	c         *Compositor
	docs      *fakeCapturer
	schedules *fakeCapturer
	sink      *memorySink
	ledger    *memoryLedger
	recorders []*pdfstest.Recorder
	states    []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := visual.NewRegistry()
	require.NoError(t, reg.Register(&visual.Region{ID: "offer-letter", Class: visual.ClassDocument, Root: visual.NewNode("div")}))
	require.NoError(t, reg.Register(&visual.Region{ID: "schedule", Class: visual.ClassSchedule, Root: visual.NewNode("div")}))

	h := &harness{
		docs:      &fakeCapturer{w: 800, h: 1200},
		schedules: &fakeCapturer{w: 5092, h: 486},
		sink:      &memorySink{},
		ledger:    &memoryLedger{},
	}
	h.c = &Compositor{
		Registry:  reg,
		Documents: h.docs,
		Schedules: h.schedules,
		Assets:    &decor.Assets{Logo: []byte("logo"), FooterLines: [2]string{"footer one", "footer two"}},
		Sink:      h.sink,
		Ledger:    h.ledger,
		NewComposer: func(g pdfs.Geometry) pdfs.Composer {
			r := pdfstest.NewRecorder(g)
			h.recorders = append(h.recorders, r)
			return r
		},
		OnTransition: func(tr Transition) { h.states = append(h.states, tr.To) },
	}
	return h
}

func TestGenerateOfferLetter(t *testing.T) {
	h := newHarness(t)
	art, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter", DocumentName: "Offer Letter.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "Offer Letter.pdf", art.Name)
	assert.Equal(t, 1, art.Pages)
	assert.Equal(t, "mem://Offer Letter.pdf", art.Location)
	assert.Equal(t, pdfs.DefaultGeometry, art.Geometry)
	assert.Equal(t, 190.0, h.docs.printable)
	assert.Equal(t, 1, h.docs.restores)
	require.Len(t, h.sink.got, 1)

	require.Len(t, h.recorders, 1)
	rec := h.recorders[0]
	page := rec.Pages()[0]
	require.NotNil(t, page.Placement())
	p := *page.Placement()
	assert.Equal(t, 10.0, p.X)
	assert.Equal(t, 10.0, p.Y)
	assert.InDelta(t, 277, p.H, 1e-9)
	assert.InDelta(t, 800*277/1200.0, p.W, 1e-9)
	assert.LessOrEqual(t, p.W, 190.0)
	assert.True(t, page.Decorated())

	content := rec.OnPage(1, pdfstest.OpImage)[0]
	assert.Equal(t, p, content.Rect, "capture is drawn before the decoration")
	assert.Contains(t, rec.Texts(1), "Page 1 of 1")

	assert.Equal(t, []State{StateValidated, StateCapturing, StateRestoring, StateDecorating, StatePersisted}, h.states)
	require.Len(t, h.ledger.entries, 1)
	assert.Equal(t, StatePersisted, h.ledger.entries[0].State)
}

func TestGenerateDefaultName(t *testing.T) {
	h := newHarness(t)
	art, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter", Context: "JOB/17"})
	require.NoError(t, err)
	assert.Equal(t, "JOB-17_offer-letter.pdf", art.Name)
}

func TestGenerateUnknownSource(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Generate(context.Background(), Request{SourceID: "nope"})
	assert.ErrorIs(t, err, capture.ErrSourceUnavailable)
	assert.Equal(t, 0, h.docs.calls)
	assert.Empty(t, h.sink.got)
	assert.Empty(t, h.recorders)
	assert.Equal(t, []State{StateFailed}, h.states)
}

func TestGenerateCaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.docs.err = capture.Errorf(capture.KindCaptureFailure, "capture", "renderer gave up")
	_, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
	assert.Empty(t, h.sink.got)
	assert.Equal(t, []State{StateValidated, StateCapturing, StateFailed}, h.states)
}

func TestGenerateCaptureFailureAfterUndo(t *testing.T) {
	h := newHarness(t)
	h.docs.err = capture.MarkRestored(capture.Errorf(capture.KindCaptureFailure, "capture", "canvas tainted"))
	_, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
	assert.Equal(t, []State{StateValidated, StateCapturing, StateRestoring, StateFailed}, h.states)
	require.Len(t, h.ledger.entries, 1)
	assert.Equal(t, StateFailed, h.ledger.entries[0].State)
}

func TestGeneratePersistFailureIsCaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("disk full")
	_, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, StateFailed, h.states[len(h.states)-1])

	h = newHarness(t)
	h.c.Sink = nil
	_, err = h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	assert.ErrorIs(t, err, capture.ErrCaptureFailure)
}

func TestGenerateRestoreFailureDoesNotMaskOutcome(t *testing.T) {
	h := newHarness(t)
	h.docs.restoreErr = errors.New("node detached")
	art, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	require.NoError(t, err)
	assert.NotNil(t, art)
	assert.Equal(t, 1, h.docs.restores)

	h = newHarness(t)
	h.docs.restoreErr = errors.New("node detached")
	h.sink.err = errors.New("disk full")
	_, err = h.c.Generate(context.Background(), Request{SourceID: "offer-letter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, capture.ErrRestoreFailure)
	assert.Equal(t, 1, h.docs.restores)
}

func TestGenerateScheduleForcesA3Landscape(t *testing.T) {
	h := newHarness(t)
	a4 := pdfs.DefaultGeometry
	art, err := h.c.Generate(context.Background(), Request{SourceID: "schedule", Geometry: &a4, WatermarkLabels: Labels{"DRAFT"}})
	require.NoError(t, err)
	assert.Equal(t, pdfs.ScheduleGeometry, art.Geometry)
	assert.Equal(t, visual.ClassSchedule, art.Class)
	assert.Equal(t, 1, h.schedules.calls)
	assert.Equal(t, 0, h.docs.calls)

	p := *h.recorders[0].Pages()[0].Placement()
	assert.Equal(t, 5.0, p.X)
	assert.Equal(t, 60.0, p.Y)
	assert.InDelta(t, 410, p.W, 1e-9)
	assert.LessOrEqual(t, p.H, 217.0)
	assert.Contains(t, h.recorders[0].Texts(1), "DRAFT")
}

func TestGenerateRequestClassWins(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Generate(context.Background(), Request{SourceID: "offer-letter", Class: visual.ClassSchedule})
	require.NoError(t, err)
	assert.Equal(t, 1, h.schedules.calls)
}

func TestRenderDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	art, err := h.c.Render(context.Background(), Request{SourceID: "offer-letter"})
	require.NoError(t, err)
	assert.NotEmpty(t, art.Data)
	assert.Empty(t, art.Location)
	assert.Empty(t, h.sink.got)
	assert.Equal(t, StateRendered, h.states[len(h.states)-1])
}

func TestLabelsJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Labels
		err  bool
	}{
		{`"DRAFT"`, Labels{"DRAFT"}, false},
		{`["DRAFT", " ", "COPY"]`, Labels{"DRAFT", "COPY"}, false},
		{`""`, nil, false},
		{`null`, nil, false},
		{`42`, nil, true},
	}
	for _, tt := range tests {
		var l Labels
		err := json.Unmarshal([]byte(tt.in), &l)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, l, tt.in)
	}
}

const scheduleWithoutBody = `{
  "class": "schedule",
  "root": {
    "tag": "div", "id": "villa-schedule-preview", "box": {"w": 1200, "h": 700},
    "children": [
      {"tag": "h1", "text": "Villa Schedule", "box": {"w": 1200, "h": 40}},
      {"tag": "div", "class": "gantt-container", "box": {"y": 40, "w": 1200, "h": 600},
       "children": [
         {"tag": "div", "class": "gantt-timeline", "box": {"x": 280, "w": 2266, "h": 55},
          "children": [{"tag": "svg", "attrs": {"width": "2266"}}]},
         {"tag": "div", "class": "gantt-labels", "box": {"y": 55, "w": 280, "h": 32},
          "children": [{"tag": "div", "class": "task-info", "text": "Excavation (5d)", "box": {"w": 280, "h": 32}}]},
         {"tag": "div", "class": "gantt-body", "box": {"x": 280, "y": 55, "w": 2266, "h": 32}}
       ]}
    ]
  }
}`

func TestGenerateScheduleMissingBody(t *testing.T) {
	region, err := visual.ParseRegion("villa-schedule", []byte(scheduleWithoutBody))
	require.NoError(t, err)
	reg := visual.NewRegistry()
	require.NoError(t, reg.Register(region))
	before := visual.Snapshot(region.Root)

	fl := flattener.New(raster.NewPainter())
	fl.Settle = capture.SettlePolicy{Interval: time.Millisecond, Max: 10 * time.Millisecond}
	sink := &memorySink{}
	var states []State
	c := &Compositor{
		Registry:     reg,
		Documents:    normalizer.New(raster.NewPainter()),
		Schedules:    fl,
		Assets:       &decor.Assets{},
		Sink:         sink,
		OnTransition: func(tr Transition) { states = append(states, tr.To) },
	}
	art, err := c.Generate(context.Background(), Request{SourceID: "villa-schedule"})
	assert.Nil(t, art)
	assert.ErrorIs(t, err, capture.ErrStructureIncomplete)
	assert.Equal(t, "Schedule elements not found. Please load the schedule view first.", capture.UserMessage(err))
	assert.Empty(t, sink.got)
	assert.Empty(t, cmp.Diff(before, visual.Snapshot(region.Root)))
	assert.Equal(t, []State{StateValidated, StateCapturing, StateFailed}, states)
}

const offerLetter = `{
  "class": "document",
  "root": {
    "tag": "div", "id": "offer-letter-preview", "style": "overflow: auto; background-color: #ffffff",
    "box": {"w": 800, "h": 600}, "natural": {"w": 800, "h": 1200}, "scroll": {"y": 300},
    "children": [
      {"tag": "div", "class": "preview-footer", "box": {"y": 1150, "w": 800, "h": 50}},
      {"tag": "p", "text": "Dear Ms. Example,", "box": {"y": 40, "w": 800, "h": 20}},
      {"tag": "svg", "box": {"y": 900, "w": 200, "h": 50},
       "children": [{"tag": "rect", "attrs": {"width": "200", "height": "50", "fill": "#333333"}}]}
    ]
  }
}`

func TestGenerateEndToEnd(t *testing.T) {
	region, err := visual.ParseRegion("offer-letter", []byte(offerLetter))
	require.NoError(t, err)
	reg := visual.NewRegistry()
	require.NoError(t, reg.Register(region))
	before := visual.Snapshot(region.Root)

	nz := normalizer.New(raster.NewPainter())
	nz.Settle = capture.SettlePolicy{Interval: time.Millisecond, Max: 10 * time.Millisecond}
	sink := &memorySink{}
	c := &Compositor{
		Registry:  reg,
		Documents: nz,
		Schedules: flattener.New(raster.NewPainter()),
		Assets:    &decor.Assets{FooterLines: [2]string{"footer one", "footer two"}},
		Sink:      sink,
	}
	art, err := c.Generate(context.Background(), Request{SourceID: "offer-letter", WatermarkLabels: Labels{"DRAFT"}})
	require.NoError(t, err)
	assert.Equal(t, "document_offer-letter.pdf", art.Name)
	assert.Equal(t, 1, art.Pages)
	assert.True(t, bytes.HasPrefix(art.Data, []byte("%PDF-")))
	assert.Empty(t, cmp.Diff(before, visual.Snapshot(region.Root)))
	assert.False(t, region.InCaptureMode())
}
