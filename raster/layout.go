package raster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zeptools/gw-docprint/visual"
)

type rect struct {
	X0, Y0, X1, Y1 float64
}

func (r rect) Empty() bool {
	return r.X0 >= r.X1 || r.Y0 >= r.Y1
}

func (r rect) Intersect(o rect) rect {
	r.X0 = math.Max(r.X0, o.X0)
	r.Y0 = math.Max(r.Y0, o.Y0)
	r.X1 = math.Min(r.X1, o.X1)
	r.Y1 = math.Min(r.Y1, o.Y1)
	if r.Empty() {
		return rect{}
	}
	return r
}

// item is one painted node in capture space (CSS px).
type item struct {
	node *visual.Node
	rect rect
	clip rect
}

type layout struct {
	items  []item
	bottom float64
	right  float64
}

var unbounded = rect{X0: math.Inf(-1), Y0: math.Inf(-1), X1: math.Inf(1), Y1: math.Inf(1)}

// layoutTree places root at the origin and every visible descendant relative
// to it. width overrides the root width when positive.
func layoutTree(root *visual.Node, width float64) *layout {
	l := &layout{}
	w, h := extent(root)
	if width > 0 {
		w = width
	}
	l.place(root, rect{X1: w, Y1: h}, unbounded, visual.Point{})
	return l
}

func (l *layout) place(n *visual.Node, r rect, clip rect, scroll visual.Point) {
	l.items = append(l.items, item{node: n, rect: r, clip: clip})
	if vis := r.Intersect(clip); !vis.Empty() {
		l.bottom = math.Max(l.bottom, vis.Y1)
		l.right = math.Max(l.right, vis.X1)
	}
	if n.IsVector() {
		// painted as one graphic
		return
	}

	childClip := clip
	childScroll := scroll
	ox, oy := r.X0, r.Y0
	if n.Clips() {
		childClip = clip.Intersect(r)
		if childClip.Empty() {
			return
		}
		childScroll = n.Scroll
		ox -= n.Scroll.X
		oy -= n.Scroll.Y
	}

	for _, c := range paintOrder(n.Children) {
		if c.Hidden() {
			continue
		}
		x, y := c.Box.X, c.Box.Y
		switch c.Computed("position") {
		case "absolute", "relative":
			if v, ok := pxLength(c.Computed("left")); ok {
				x = v
			}
			if v, ok := pxLength(c.Computed("top")); ok {
				y = v
			}
		case "sticky":
			// pinned against the scroll of the nearest clipping ancestor
			x += childScroll.X
			y += childScroll.Y
		}
		w, h := extent(c)
		cr := rect{X0: ox + x, Y0: oy + y}
		cr.X1, cr.Y1 = cr.X0+w, cr.Y0+h
		l.place(c, cr, childClip, childScroll)
	}
}

// extent is the painted size of n: explicit px sizes win, otherwise a
// non-clipping node grows to its natural content size.
func extent(n *visual.Node) (float64, float64) {
	w, h := n.Box.W, n.Box.H
	if v, ok := pxLength(n.Computed("width")); ok {
		w = v
	} else if !n.Clips() {
		w = n.NaturalWidth()
	}
	if v, ok := pxLength(n.Computed("height")); ok {
		h = v
	} else if !n.Clips() {
		h = n.NaturalHeight()
	}
	return math.Max(w, 0), math.Max(h, 0)
}

// stackLevel orders painting: z-index first, then positioned boxes above
// static ones.
func stackLevel(n *visual.Node) (int, int) {
	if n.Computed("position") == "static" {
		return 0, 0
	}
	z, err := strconv.Atoi(strings.TrimSpace(n.Computed("z-index")))
	if err != nil {
		return 0, 1
	}
	return z, 1
}

// paintOrder sorts siblings by stacking level, keeping document order for ties.
func paintOrder(children []*visual.Node) []*visual.Node {
	out := make([]*visual.Node, len(children))
	copy(out, children)
	sort.SliceStable(out, func(i, j int) bool {
		zi, pi := stackLevel(out[i])
		zj, pj := stackLevel(out[j])
		if zi != zj {
			return zi < zj
		}
		return pi < pj
	})
	return out
}

// ContentSize reports the visible extent of root laid out at width.
func ContentSize(root *visual.Node, width float64) visual.Size {
	l := layoutTree(root, width)
	w := l.right
	if width > 0 {
		w = width
	}
	return visual.Size{W: w, H: l.bottom}
}

// LayoutFingerprint hashes the placed boxes of the subtree. Two equal
// fingerprints mean nothing moved between measurements.
func LayoutFingerprint(root *visual.Node) string {
	if root == nil {
		return ""
	}
	h := sha256.New()
	for _, it := range layoutTree(root, 0).items {
		fmt.Fprintf(h, "%p %.2f %.2f %.2f %.2f %t\n", it.node, it.rect.X0, it.rect.Y0, it.rect.X1, it.rect.Y1, it.node.Image != nil)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
