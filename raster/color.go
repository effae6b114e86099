package raster

import (
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.RGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
}

// ParseColor understands #rgb, #rrggbb, rgb()/rgba() and a few names.
// The bool is false for transparent or unparsable values.
func ParseColor(v string) (color.RGBA, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == "transparent" || v == "none" {
		return color.RGBA{}, false
	}
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.RGBA{}, false
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, false
		}
		return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, true
	}
	if inner, ok := strings.CutPrefix(v, "rgba("); ok {
		return parseRGBArgs(strings.TrimSuffix(inner, ")"))
	}
	if inner, ok := strings.CutPrefix(v, "rgb("); ok {
		return parseRGBArgs(strings.TrimSuffix(inner, ")"))
	}
	return color.RGBA{}, false
}

func parseRGBArgs(args string) (color.RGBA, bool) {
	parts := strings.Split(args, ",")
	if len(parts) < 3 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, false
		}
		ch[i] = uint8(n)
	}
	c := color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return color.RGBA{}, false
		}
		if a <= 0 {
			return color.RGBA{}, false
		}
		if a < 1 {
			// premultiplied
			c = color.RGBA{R: uint8(float64(c.R) * a), G: uint8(float64(c.G) * a), B: uint8(float64(c.B) * a), A: uint8(255 * a)}
		}
	}
	return c, true
}

// parseBorder reads "2px solid #ccc" into a width and colour.
func parseBorder(v string) (float64, color.RGBA, bool) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, color.RGBA{}, false
	}
	width := 1.0
	c := color.RGBA{A: 255}
	for _, f := range fields {
		if px, ok := pxLength(f); ok {
			width = px
			continue
		}
		if f == "none" || f == "hidden" {
			return 0, color.RGBA{}, false
		}
		if parsed, ok := ParseColor(f); ok {
			c = parsed
		}
	}
	return width, c, width > 0
}

func pxLength(v string) (float64, bool) {
	if !strings.HasSuffix(v, "px") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	return f, err == nil
}
