package pdfs

import (
	"fmt"
	"strings"
)

// PaperSize is a portrait sheet in mm.
type PaperSize struct {
	Name   string
	Width  float64 // in `mm`
	Height float64 // in `mm`
}

var (
	A3Size     = PaperSize{Name: "a3", Width: 297, Height: 420}
	A4Size     = PaperSize{Name: "a4", Width: 210, Height: 297}
	A5Size     = PaperSize{Name: "a5", Width: 148, Height: 210}
	LetterSize = PaperSize{Name: "letter", Width: 215.9, Height: 279.4} // 8.5" x 11"
	LegalSize  = PaperSize{Name: "legal", Width: 215.9, Height: 355.6}  // 8.5" x 14"
)

var paperSizes = map[string]PaperSize{
	A3Size.Name:     A3Size,
	A4Size.Name:     A4Size,
	A5Size.Name:     A5Size,
	LetterSize.Name: LetterSize,
	LegalSize.Name:  LegalSize,
}

func LookupPaperSize(name string) (PaperSize, error) {
	p, ok := paperSizes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PaperSize{}, fmt.Errorf("unknown paper format %q", name)
	}
	return p, nil
}

// Large reports whether the sheet is a3 or bigger.
func (p PaperSize) Large() bool {
	return p.Width*p.Height >= A3Size.Width*A3Size.Height
}
