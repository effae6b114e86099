package visual

import "strings"

// compound is one `tag#id.class` part of a selector
type compound struct {
	tag     string
	id      string
	classes []string
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && c.tag != "*" && c.tag != n.Tag {
		return false
	}
	if c.id != "" && c.id != n.ID {
		return false
	}
	for _, class := range c.classes {
		if !n.HasClass(class) {
			return false
		}
	}
	return true
}

type selector struct {
	parts []compound
	combs []byte // combs[i] joins parts[i] and parts[i+1]: ' ' or '>'
}

// parseSelector supports compounds joined by descendant (space) and child (>) combinators.
func parseSelector(sel string) selector {
	var s selector
	sel = strings.ReplaceAll(sel, ">", " > ")
	pendingChild := false
	for _, tok := range strings.Fields(sel) {
		if tok == ">" {
			pendingChild = true
			continue
		}
		if len(s.parts) > 0 {
			if pendingChild {
				s.combs = append(s.combs, '>')
			} else {
				s.combs = append(s.combs, ' ')
			}
		}
		pendingChild = false
		s.parts = append(s.parts, parseCompound(tok))
	}
	return s
}

func parseCompound(tok string) compound {
	var c compound
	kind := byte(0)
	start := 0
	flush := func(end int) {
		part := tok[start:end]
		switch kind {
		case '#':
			c.id = part
		case '.':
			if part != "" {
				c.classes = append(c.classes, part)
			}
		default:
			c.tag = strings.ToLower(part)
		}
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] == '#' || tok[i] == '.' {
			flush(i)
			kind = tok[i]
			start = i + 1
		}
	}
	flush(len(tok))
	return c
}

func (s selector) matchFrom(n *Node, idx int) bool {
	if !s.parts[idx].matches(n) {
		return false
	}
	if idx == 0 {
		return true
	}
	if s.combs[idx-1] == '>' {
		return n.parent != nil && s.matchFrom(n.parent, idx-1)
	}
	for a := n.parent; a != nil; a = a.parent {
		if s.matchFrom(a, idx-1) {
			return true
		}
	}
	return false
}

// QuerySelectorAll returns descendants of n matching sel in document order.
func (n *Node) QuerySelectorAll(sel string) []*Node {
	s := parseSelector(sel)
	if len(s.parts) == 0 {
		return nil
	}
	var out []*Node
	for _, d := range n.Descendants() {
		if s.matchFrom(d, len(s.parts)-1) {
			out = append(out, d)
		}
	}
	return out
}

// QuerySelector returns the first matching descendant or nil.
func (n *Node) QuerySelector(sel string) *Node {
	s := parseSelector(sel)
	if len(s.parts) == 0 {
		return nil
	}
	var found *Node
	for _, c := range n.Children {
		c.Walk(func(d *Node) bool {
			if s.matchFrom(d, len(s.parts)-1) {
				found = d
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}
