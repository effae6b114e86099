package visual

import (
	"sort"
	"strings"
)

// Declaration is a single inline style value.
type Declaration struct {
	Value     string
	Important bool
}

func (d Declaration) String() string {
	if d.Important {
		return d.Value + " !important"
	}
	return d.Value
}

// Style holds the inline style of a Node (the mutable layer above the sheet).
type Style struct {
	props map[string]Declaration
}

// ParseStyle parses css text like "overflow: hidden; width: 10px !important".
func ParseStyle(cssText string) Style {
	var s Style
	for _, part := range strings.Split(cssText, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		important := false
		if v, found := strings.CutSuffix(value, "!important"); found {
			value = strings.TrimSpace(v)
			important = true
		}
		s.Set(prop, value, important)
	}
	return s
}

func (s *Style) Get(prop string) (Declaration, bool) {
	d, ok := s.props[prop]
	return d, ok
}

func (s *Style) Set(prop string, value string, important bool) {
	if s.props == nil {
		s.props = make(map[string]Declaration)
	}
	s.props[prop] = Declaration{Value: value, Important: important}
}

func (s *Style) Remove(prop string) {
	delete(s.props, prop)
}

// Props returns the declared property names, sorted.
func (s *Style) Props() []string {
	keys := make([]string, 0, len(s.props))
	for k := range s.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Style) Len() int {
	return len(s.props)
}

func (s *Style) Clone() Style {
	c := Style{}
	for k, v := range s.props {
		c.Set(k, v.Value, v.Important)
	}
	return c
}

// String renders the declarations sorted by property name.
func (s *Style) String() string {
	if len(s.props) == 0 {
		return ""
	}
	keys := s.Props()
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s.props[k].String())
	}
	return b.String()
}

// initial values for properties the pipeline reads
var initialValues = map[string]string{
	"display":             "block",
	"overflow":            "visible",
	"position":            "static",
	"z-index":             "auto",
	"width":               "auto",
	"height":              "auto",
	"font-weight":         "400",
	"list-style-position": "outside",
	"left":                "auto",
	"top":                 "auto",
}
