package compositor

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/visual"
)

// Labels is the watermark text list. In JSON it is a string or an array of
// strings; blanks are dropped.
type Labels []string

func (l *Labels) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = compact([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("watermark labels must be a string or an array of strings")
	}
	*l = compact(many)
	return nil
}

// NewLabels trims labels and drops the blank ones.
func NewLabels(labels ...string) Labels {
	return compact(labels)
}

func compact(in []string) Labels {
	var out Labels
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Request is one generation request. It is not modified by the pipeline.
type Request struct {
	SourceID        string
	Class           visual.SourceClass // ClassUnknown defers to the region
	Geometry        *pdfs.Geometry     // nil means a4 portrait; ignored for schedules
	DocumentName    string
	Context         string // used in the default name
	WatermarkLabels Labels
}

// Name is the artifact file name for the request.
func (r *Request) Name() string {
	if strings.TrimSpace(r.DocumentName) != "" {
		return pdfs.NormalizeName(r.DocumentName)
	}
	return pdfs.DefaultName(r.Context, r.SourceID)
}

// Artifact is a finished document.
type Artifact struct {
	Name      string
	Data      []byte
	Pages     int
	Location  string // where the sink put it: a path or a download token
	SourceID  string
	Class     visual.SourceClass
	Geometry  pdfs.Geometry
	CreatedAt time.Time
}
