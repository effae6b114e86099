package pdfs

import "math"

// Margins are page margins in mm. Side applies left and right.
type Margins struct {
	Top    float64
	Bottom float64
	Side   float64
}

var (
	DocumentMargins = Margins{Top: 10, Bottom: 10, Side: 10}
	// schedules leave room for the header logo band and use thin sides
	ScheduleMargins = Margins{Top: 60, Bottom: 20, Side: 5}
)

// Rect is a rectangle on a page in mm, origin top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Printable is the page area left inside the margins.
func Printable(g Geometry, m Margins) Rect {
	w, h := g.PageSize()
	return Rect{X: m.Side, Y: m.Top, W: w - 2*m.Side, H: h - m.Top - m.Bottom}
}

// FitScale is the largest uniform scale that fits a w x h raster inside the
// area. It is 0 for degenerate sizes.
func FitScale(area Rect, w, h float64) float64 {
	if w <= 0 || h <= 0 || area.W <= 0 || area.H <= 0 {
		return 0
	}
	return math.Min(area.W/w, area.H/h)
}

// Fit places a w x h raster at the area's top-left corner, scaled to fit.
func Fit(area Rect, w, h float64) Rect {
	s := FitScale(area, w, h)
	return Rect{X: area.X, Y: area.Y, W: w * s, H: h * s}
}
