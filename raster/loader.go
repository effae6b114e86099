package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

var ErrUnsupportedRef = errors.New("raster: only data: image references are supported")

// Pending is an image decode running in the background.
type Pending struct {
	Ref  string
	done chan struct{}
	img  image.Image
	err  error
}

// Load starts decoding ref. w and h size vector references; raster
// references keep their own size.
func Load(ref string, w, h int) *Pending {
	p := &Pending{Ref: ref, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("raster: decode panic: %v", r)
			}
		}()
		p.img, p.err = Decode(ref, w, h)
	}()
	return p
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the decode finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAll waits for every load up to timeout. A failed or late load yields
// nil at its index and is logged; it never fails the batch.
func WaitAll(ctx context.Context, timeout time.Duration, loads []*Pending) []image.Image {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out := make([]image.Image, len(loads))
	for i, p := range loads {
		img, err := p.Wait(ctx)
		if err != nil {
			log.Printf("[WARN][RASTER] image %d not loaded: %v", i, err)
			continue
		}
		out[i] = img
	}
	return out
}

// Decode resolves a data: reference into pixels.
func Decode(ref string, w, h int) (image.Image, error) {
	mediaType, data, err := parseDataURI(ref)
	if err != nil {
		return nil, err
	}
	if mediaType == "image/svg+xml" {
		return DecodeSVG(data, w, h)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode %s: %w", mediaType, err)
	}
	return img, nil
}

func parseDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, ErrUnsupportedRef
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("raster: malformed data reference")
	}
	base64Encoded := strings.HasSuffix(meta, ";base64")
	mediaType, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	if base64Encoded {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("raster: data reference: %w", err)
		}
		return mediaType, data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("raster: data reference: %w", err)
	}
	return mediaType, []byte(s), nil
}

// DecodeSVG rasterizes an SVG document at w x h device pixels. A zero size
// falls back to the document's own view box.
func DecodeSVG(data []byte, w, h int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("raster: parse svg: %w", err)
	}
	if w <= 0 {
		w = int(icon.ViewBox.W)
	}
	if h <= 0 {
		h = int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New("raster: svg has no size")
	}
	if w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("raster: svg %dx%d exceeds %d px", w, h, MaxDimension)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}
