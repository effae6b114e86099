package pdfs

import "strings"

const (
	Extension      = ".pdf"
	DefaultContext = "document"
)

// NormalizeName trims name and makes it end in exactly one ".pdf".
// Repeated suffixes collapse, so the result is stable when applied again.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	for {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, Extension) {
			break
		}
		name = strings.TrimSpace(name[:len(name)-len(Extension)])
	}
	if name == "" {
		name = DefaultContext
	}
	return name + Extension
}

// DefaultName derives "{context}_{sourceID}.pdf". Path separators in either
// part become "-".
func DefaultName(context, sourceID string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		context = DefaultContext
	}
	r := strings.NewReplacer("/", "-", `\`, "-")
	return NormalizeName(r.Replace(context) + "_" + r.Replace(strings.TrimSpace(sourceID)))
}
