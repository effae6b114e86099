package visual

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NodeDoc is the JSON form of a Node as published by the view layer.
type NodeDoc struct {
	Tag      string            `json:"tag"`
	ID       string            `json:"id,omitempty"`
	Class    string            `json:"class,omitempty"` // space separated
	Text     string            `json:"text,omitempty"`
	Style    string            `json:"style,omitempty"` // inline css text
	Sheet    map[string]string `json:"sheet,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Box      Box               `json:"box"`
	Natural  Size              `json:"natural"`
	Scroll   Point             `json:"scroll"`
	Children []NodeDoc        `json:"children,omitempty"`
}

type RegionDoc struct {
	Class string   `json:"class"`
	Root  NodeDoc `json:"root"`
}

func (s NodeDoc) Build() (*Node, error) {
	if s.Tag == "" {
		return nil, errors.New("visual: node tag required")
	}
	n := &Node{
		Tag:     strings.ToLower(s.Tag),
		ID:      s.ID,
		Classes: strings.Fields(s.Class),
		Text:    s.Text,
		Style:   ParseStyle(s.Style),
		Box:     s.Box,
		Natural: s.Natural,
		Scroll:  s.Scroll,
	}
	if len(s.Sheet) > 0 {
		n.Sheet = s.Sheet
	}
	if len(s.Attrs) > 0 {
		n.Attrs = s.Attrs
	}
	for i, cs := range s.Children {
		child, err := cs.Build()
		if err != nil {
			return nil, fmt.Errorf("child %d of <%s>: %w", i, n.Tag, err)
		}
		n.AppendChild(child)
	}
	return n, nil
}

// ParseRegion decodes a RegionDoc document into a Region.
func ParseRegion(id string, data []byte) (*Region, error) {
	var doc RegionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode region %q: %w", id, err)
	}
	class, err := ParseSourceClass(doc.Class)
	if err != nil {
		return nil, err
	}
	if class == ClassUnknown {
		class = ClassDocument
	}
	root, err := doc.Root.Build()
	if err != nil {
		return nil, fmt.Errorf("build region %q: %w", id, err)
	}
	return &Region{ID: id, Class: class, Root: root}, nil
}
