// Package vector turns vector graphic sub-trees of a visual region into
// portable image references the raster engine can decode on its own.
package vector

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"regexp"
	"sort"
	"strconv"

	"github.com/zeptools/gw-docprint/visual"
)

const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	DataURIPrefix  = "data:image/svg+xml;base64,"
	themeVarColour = "#000"
)

var themeVarPattern = regexp.MustCompile(`var\(--[^)]+\)`)

// Purify returns a detached clone of the graphic with theme variable
// references replaced by a fixed colour and every !important flag dropped.
// The capture renderer can resolve neither.
func Purify(svg *visual.Node) *visual.Node {
	clone := svg.Clone()
	clone.Walk(func(n *visual.Node) bool {
		for _, prop := range n.Style.Props() {
			d, _ := n.Style.Get(prop)
			n.Style.Set(prop, themeVarPattern.ReplaceAllString(d.Value, themeVarColour), false)
		}
		for k, v := range n.Attrs {
			n.Attrs[k] = themeVarPattern.ReplaceAllString(v, themeVarColour)
		}
		return true
	})
	return clone
}

// Serialize writes the graphic as a standalone SVG document.
func Serialize(svg *visual.Node) ([]byte, error) {
	if svg == nil || !svg.IsVector() {
		return nil, errors.New("vector: not an svg node")
	}
	var buf bytes.Buffer
	writeElement(&buf, svg, true)
	return buf.Bytes(), nil
}

// DataURI purifies and serializes the graphic into a base64 data URI.
func DataURI(svg *visual.Node) (string, error) {
	b, err := Serialize(Purify(svg))
	if err != nil {
		return "", err
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(b), nil
}

func writeElement(buf *bytes.Buffer, n *visual.Node, root bool) {
	attrs := make(map[string]string, len(n.Attrs)+4)
	for k, v := range n.Attrs {
		attrs[k] = v
	}
	if root {
		if attrs["xmlns"] == "" {
			attrs["xmlns"] = svgNamespace
		}
		if attrs["width"] == "" && n.Box.W > 0 {
			attrs["width"] = strconv.FormatFloat(n.Box.W, 'f', -1, 64)
		}
		if attrs["height"] == "" && n.Box.H > 0 {
			attrs["height"] = strconv.FormatFloat(n.Box.H, 'f', -1, 64)
		}
	}
	if n.ID != "" {
		attrs["id"] = n.ID
	}
	if len(n.Classes) > 0 {
		attrs["class"] = joinFields(n.Classes)
	}
	if s := n.Style.String(); s != "" {
		attrs["style"] = s
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('<')
	buf.WriteString(n.Tag)
	for _, k := range keys {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteString(`="`)
		_ = xml.EscapeText(buf, []byte(attrs[k]))
		buf.WriteByte('"')
	}
	if n.Text == "" && len(n.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if n.Text != "" {
		_ = xml.EscapeText(buf, []byte(n.Text))
	}
	for _, c := range n.Children {
		writeElement(buf, c, false)
	}
	buf.WriteString("</")
	buf.WriteString(n.Tag)
	buf.WriteByte('>')
}

func joinFields(fields []string) string {
	var b bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f)
	}
	return b.String()
}
