package visual

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Snapshot renders the observable layout state of a subtree as text.
// Two snapshots are equal iff structure, inline styles, boxes, scroll
// offsets, text and attributes are equal.
func Snapshot(n *Node) string {
	var b strings.Builder
	writeSnapshot(&b, n, 0)
	return b.String()
}

// Fingerprint is a short digest of Snapshot.
func Fingerprint(n *Node) string {
	sum := sha256.Sum256([]byte(Snapshot(n)))
	return hex.EncodeToString(sum[:8])
}

func writeSnapshot(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Tag)
	if n.ID != "" {
		b.WriteString("#" + n.ID)
	}
	for _, c := range n.Classes {
		b.WriteString("." + c)
	}
	fmt.Fprintf(b, " box=%g,%g,%g,%g natural=%g,%g scroll=%g,%g",
		n.Box.X, n.Box.Y, n.Box.W, n.Box.H, n.Natural.W, n.Natural.H, n.Scroll.X, n.Scroll.Y)
	if s := n.Style.String(); s != "" {
		fmt.Fprintf(b, " style=%q", s)
	}
	if len(n.Attrs) > 0 {
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%q", k, n.Attrs[k])
		}
	}
	if n.Text != "" {
		fmt.Fprintf(b, " text=%q", n.Text)
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		writeSnapshot(b, c, depth+1)
	}
}
