package visual

import (
	"errors"
	"image"
	"math"
	"strconv"
	"strings"
)

var ErrNotAChild = errors.New("visual: node is not a child of this parent")

type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one element of a live visual region.
// Box is the layout box measured by the view layer in CSS px, relative to the
// parent's content origin. Natural is the full content extent (scroll size).
type Node struct {
	Tag      string
	ID       string
	Classes  []string
	Text     string
	Attrs    map[string]string
	Sheet    map[string]string // cascaded stylesheet values, read-only
	Style    Style             // inline style, the only layer the pipeline mutates
	Box      Box
	Natural  Size
	Scroll   Point
	Children []*Node
	Image    image.Image // decoded pixels of an img node, nil until loaded

	parent *Node
}

func NewNode(tag string) *Node {
	return &Node{Tag: strings.ToLower(tag)}
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) AppendChild(child *Node) {
	if child.parent != nil {
		_ = child.parent.RemoveChild(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

// InsertBefore inserts child immediately before ref. A nil ref appends.
func (n *Node) InsertBefore(child *Node, ref *Node) error {
	if ref == nil {
		n.AppendChild(child)
		return nil
	}
	i := n.IndexOf(ref)
	if i < 0 {
		return ErrNotAChild
	}
	if child.parent != nil {
		_ = child.parent.RemoveChild(child)
		i = n.IndexOf(ref)
	}
	child.parent = n
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
	return nil
}

func (n *Node) RemoveChild(child *Node) error {
	i := n.IndexOf(child)
	if i < 0 {
		return ErrNotAChild
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	child.parent = nil
	return nil
}

func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Walk visits n and its descendants in document order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Descendants returns every node below n in document order.
func (n *Node) Descendants() []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			out = append(out, d)
			return true
		})
	}
	return out
}

// Clone returns a detached deep copy. Decoded images are shared.
func (n *Node) Clone() *Node {
	c := &Node{
		Tag:     n.Tag,
		ID:      n.ID,
		Classes: append([]string(nil), n.Classes...),
		Text:    n.Text,
		Style:   n.Style.Clone(),
		Box:     n.Box,
		Natural: n.Natural,
		Scroll:  n.Scroll,
		Image:   n.Image,
	}
	if n.Attrs != nil {
		c.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	if n.Sheet != nil {
		c.Sheet = make(map[string]string, len(n.Sheet))
		for k, v := range n.Sheet {
			c.Sheet[k] = v
		}
	}
	for _, child := range n.Children {
		c.AppendChild(child.Clone())
	}
	return c
}

func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

func (n *Node) Attr(name string) string {
	return n.Attrs[name]
}

func (n *Node) SetAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// TextContent concatenates the text of n and all its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(d *Node) bool {
		b.WriteString(d.Text)
		return true
	})
	return b.String()
}

// Computed resolves prop through inline style, then sheet, then initial value.
func (n *Node) Computed(prop string) string {
	if d, ok := n.Style.Get(prop); ok {
		return d.Value
	}
	if v, ok := n.Sheet[prop]; ok {
		return v
	}
	return initialValues[prop]
}

func (n *Node) IsVector() bool {
	return n.Tag == "svg"
}

// Clips reports whether the node cuts its content off at its box.
func (n *Node) Clips() bool {
	switch n.Computed("overflow") {
	case "hidden", "auto", "scroll", "clip":
		return true
	}
	return false
}

func (n *Node) Hidden() bool {
	return n.Computed("display") == "none"
}

// Weight returns the numeric computed font weight.
func (n *Node) Weight() int {
	switch w := n.Computed("font-weight"); w {
	case "bold", "bolder":
		return 700
	case "normal", "", "lighter":
		return 400
	default:
		v, err := strconv.Atoi(w)
		if err != nil {
			return 400
		}
		return v
	}
}

// NaturalWidth is the scroll width: the larger of box and content extent.
func (n *Node) NaturalWidth() float64 {
	return math.Max(n.Box.W, n.Natural.W)
}

func (n *Node) NaturalHeight() float64 {
	return math.Max(n.Box.H, n.Natural.H)
}

// Bounded reports whether every size in the subtree is finite and non-negative.
func (n *Node) Bounded() bool {
	return n.Walk(func(d *Node) bool {
		for _, v := range []float64{d.Box.W, d.Box.H, d.Natural.W, d.Natural.H} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return false
			}
		}
		for _, v := range []float64{d.Box.X, d.Box.Y, d.Scroll.X, d.Scroll.Y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		return true
	})
}

// PxValue parses a css pixel length like "12px" or "12".
func PxValue(v string) (float64, bool) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
