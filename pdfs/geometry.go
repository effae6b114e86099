package pdfs

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Geometry is a paper format plus orientation, written "a4_portrait".
type Geometry struct {
	Format      PaperSize
	Orientation Orientation
}

var (
	DefaultGeometry  = Geometry{Format: A4Size, Orientation: Portrait}
	ScheduleGeometry = Geometry{Format: A3Size, Orientation: Landscape}
)

// ParseGeometry reads "{format}_{orientation}". An empty string gives the
// default geometry; a bare format is portrait.
func ParseGeometry(s string) (Geometry, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultGeometry, nil
	}
	format, orientation, _ := strings.Cut(s, "_")
	p, err := LookupPaperSize(format)
	if err != nil {
		return Geometry{}, err
	}
	g := Geometry{Format: p, Orientation: Portrait}
	switch Orientation(orientation) {
	case "", Portrait:
	case Landscape:
		g.Orientation = Landscape
	default:
		return Geometry{}, fmt.Errorf("unknown orientation %q", orientation)
	}
	return g, nil
}

func (g Geometry) String() string {
	return g.Format.Name + "_" + string(g.Orientation)
}

// PageSize returns the page width and height in mm for the orientation.
func (g Geometry) PageSize() (float64, float64) {
	w, h := g.Format.Width, g.Format.Height
	if g.Orientation == Landscape {
		return math.Max(w, h), math.Min(w, h)
	}
	return math.Min(w, h), math.Max(w, h)
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// geometryDoc is the object form {"format": "a4", "orientation": "landscape"}.
type geometryDoc struct {
	Format      string `json:"format"`
	Orientation string `json:"orientation"`
}

// UnmarshalJSON accepts the object form or the "a4_portrait" string.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var doc geometryDoc
		if objErr := json.Unmarshal(data, &doc); objErr != nil {
			return fmt.Errorf("page geometry: want \"format_orientation\" or {format, orientation}: %w", err)
		}
		if strings.TrimSpace(doc.Format) == "" {
			return fmt.Errorf("page geometry: format is required")
		}
		s = doc.Format
		if o := strings.TrimSpace(doc.Orientation); o != "" {
			s += "_" + o
		}
	}
	parsed, err := ParseGeometry(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
