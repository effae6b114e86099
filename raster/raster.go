// Package raster turns a visual subtree into a pixel image.
package raster

import (
	"context"
	"image"
	"image/color"

	"github.com/zeptools/gw-docprint/visual"
)

// MaxDimension caps either side of a capture in device pixels.
const MaxDimension = 16384

// Raster is a captured pixel image. Width and Height are device pixels.
type Raster struct {
	Image  image.Image
	Width  int
	Height int
}

type Options struct {
	Width      float64 // capture window width in CSS px, 0 derives it from the root
	Height     float64 // capture height in CSS px, 0 derives it from the content
	Scale      float64 // device px per CSS px, 0 means 1
	Background color.Color
}

// Rasterizer captures a subtree as a single raster.
type Rasterizer interface {
	Capture(ctx context.Context, root *visual.Node, opts Options) (*Raster, error)
}
