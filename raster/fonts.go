package raster

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	parseOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	parseErr    error
)

func loadFonts() error {
	parseOnce.Do(func() {
		if regularFont, parseErr = opentype.Parse(goregular.TTF); parseErr != nil {
			return
		}
		boldFont, parseErr = opentype.Parse(gobold.TTF)
	})
	return parseErr
}

type faceKey struct {
	bold bool
	size float64
}

// faceCache belongs to one capture; font.Face values are not safe for
// concurrent use.
type faceCache struct {
	faces map[faceKey]font.Face
}

func newFaceCache() (*faceCache, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("parse fonts: %w", err)
	}
	return &faceCache{faces: make(map[faceKey]font.Face)}, nil
}

func (c *faceCache) face(bold bool, size float64) (font.Face, error) {
	k := faceKey{bold: bold, size: size}
	if f, ok := c.faces[k]; ok {
		return f, nil
	}
	src := regularFont
	if bold {
		src = boldFont
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	c.faces[k] = f
	return f, nil
}

func (c *faceCache) Close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}
