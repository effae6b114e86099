package pdfs

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeometry(t *testing.T) {
	tests := []struct {
		in   string
		want Geometry
		err  bool
	}{
		{"", DefaultGeometry, false},
		{"a4_portrait", Geometry{Format: A4Size, Orientation: Portrait}, false},
		{"A3_Landscape", ScheduleGeometry, false},
		{"letter", Geometry{Format: LetterSize, Orientation: Portrait}, false},
		{"b5_portrait", Geometry{}, true},
		{"a4_sideways", Geometry{}, true},
	}
	for _, tt := range tests {
		got, err := ParseGeometry(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "a3_landscape", ScheduleGeometry.String())
}

func TestGeometryJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Geometry
		err  bool
	}{
		{`"a4_portrait"`, DefaultGeometry, false},
		{`{"format": "a4", "orientation": "landscape"}`, Geometry{Format: A4Size, Orientation: Landscape}, false},
		{`{"format": "A3"}`, Geometry{Format: A3Size, Orientation: Portrait}, false},
		{`{"orientation": "landscape"}`, Geometry{}, true},
		{`{"format": "a4", "orientation": "sideways"}`, Geometry{}, true},
		{`42`, Geometry{}, true},
	}
	for _, tt := range tests {
		var got Geometry
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	b, err := json.Marshal(ScheduleGeometry)
	require.NoError(t, err)
	assert.Equal(t, `"a3_landscape"`, string(b))
}

func TestPageSize(t *testing.T) {
	w, h := DefaultGeometry.PageSize()
	assert.Equal(t, [2]float64{210, 297}, [2]float64{w, h})
	w, h = ScheduleGeometry.PageSize()
	assert.Equal(t, [2]float64{420, 297}, [2]float64{w, h})
	assert.True(t, A3Size.Large())
	assert.False(t, A4Size.Large())
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, Rect{X: 10, Y: 10, W: 190, H: 277}, Printable(DefaultGeometry, DocumentMargins))
	assert.Equal(t, Rect{X: 5, Y: 60, W: 410, H: 217}, Printable(ScheduleGeometry, ScheduleMargins))
}

func TestFit(t *testing.T) {
	area := Printable(DefaultGeometry, DocumentMargins)
	sizes := [][2]float64{{800, 1200}, {6000, 400}, {100, 5000}, {190, 277}, {1, 1}}
	for _, s := range sizes {
		r := Fit(area, s[0], s[1])
		assert.Equal(t, area.X, r.X)
		assert.Equal(t, area.Y, r.Y)
		assert.LessOrEqual(t, r.W, area.W+1e-9, "%v", s)
		assert.LessOrEqual(t, r.H, area.H+1e-9, "%v", s)
		touches := r.W >= area.W-1e-9 || r.H >= area.H-1e-9
		assert.True(t, touches, "at least one side touches the printable area: %v", s)
		assert.InDelta(t, s[0]/s[1], r.W/r.H, 1e-9, "aspect kept: %v", s)
	}
	assert.Equal(t, 0.0, FitScale(area, 0, 100))

	r := Fit(area, 800, 1200)
	assert.InDelta(t, 184.6667, r.W, 1e-3)
	assert.InDelta(t, 277, r.H, 1e-9)
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Offer":          "Offer.pdf",
		"Offer.pdf":      "Offer.pdf",
		"Offer.pdf.pdf":  "Offer.pdf",
		"Offer.PDF":      "Offer.pdf",
		"  Offer .pdf  ": "Offer.pdf",
		"":               "document.pdf",
		"report.v2":      "report.v2.pdf",
	}
	for in, want := range tests {
		got := NormalizeName(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, NormalizeName(got), "idempotent for %q", in)
	}
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "document_offer-letter.pdf", DefaultName("", "offer-letter"))
	assert.Equal(t, "JOB-2024-17_schedule.pdf", DefaultName("JOB/2024\\17", "schedule"))
}

func TestPageStateDecoratedOnce(t *testing.T) {
	p := NewPageState(1)
	assert.Nil(t, p.Placement())
	p.SetPlacement(Rect{X: 10, Y: 10, W: 190, H: 277})
	assert.Equal(t, &Rect{X: 10, Y: 10, W: 190, H: 277}, p.Placement())

	require.NoError(t, p.MarkDecorated())
	assert.True(t, p.Decorated())
	assert.ErrorIs(t, p.MarkDecorated(), ErrAlreadyDecorated)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestFPDFComposer(t *testing.T) {
	c := NewFPDFComposer(DefaultGeometry)
	w, h := c.PageSize()
	assert.InDelta(t, 210, w, 1e-6)
	assert.InDelta(t, 297, h, 1e-6)

	assert.Error(t, c.Image(pngBytes(t), Rect{W: 10, H: 10}, 1), "no page yet")

	c.AddPage()
	c.AddPage()
	require.Len(t, c.Pages(), 2)
	assert.Error(t, c.SelectPage(3))
	require.NoError(t, c.SelectPage(1))

	img := pngBytes(t)
	require.NoError(t, c.Image(img, Rect{X: 10, Y: 10, W: 50, H: 50}, 0.08))
	require.NoError(t, c.Image(img, Rect{X: 10, Y: 70, W: 50, H: 50}, 1))
	assert.Equal(t, 1, c.images.Len())
	assert.Error(t, c.Image([]byte("not an image"), Rect{W: 1, H: 1}, 1))

	c.Text(100, 100, "DRAFT", TextStyle{Bold: true, Size: 32, Gray: 150, Opacity: 0.05, Angle: -45, Align: AlignCenter})
	c.Line(10, 277, 200, 277, 0.2, 0)

	out, err := c.ProduceBytes()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestFPDFComposerLandscape(t *testing.T) {
	c := NewFPDFComposer(ScheduleGeometry)
	c.AddPage()
	w, h := c.PageSize()
	assert.InDelta(t, 420, w, 1e-6)
	assert.InDelta(t, 297, h, 1e-6)
}
