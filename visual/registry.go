package visual

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// SourceClass tells the pipeline which capture strategy a region needs.
type SourceClass int

const (
	ClassUnknown SourceClass = iota
	ClassDocument
	ClassSchedule
)

func (c SourceClass) String() string {
	switch c {
	case ClassDocument:
		return "document"
	case ClassSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

func ParseSourceClass(s string) (SourceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return ClassUnknown, nil
	case "document":
		return ClassDocument, nil
	case "schedule":
		return ClassSchedule, nil
	}
	return ClassUnknown, fmt.Errorf("unknown source class %q", s)
}

// Region is a live visual source: a rendered content area of the application.
type Region struct {
	ID    string
	Class SourceClass
	Root  *Node

	captureMode atomic.Bool
	nodes       int // counted by Register, before any capture can touch Root
}

// EnterCaptureMode takes the exclusive capture-mode flag of the region.
// It returns false when another capture already holds it.
func (r *Region) EnterCaptureMode() bool {
	return r.captureMode.CompareAndSwap(false, true)
}

func (r *Region) LeaveCaptureMode() {
	r.captureMode.Store(false)
}

func (r *Region) InCaptureMode() bool {
	return r.captureMode.Load()
}

type RegionInfo struct {
	ID    string `json:"id"`
	Class string `json:"class"`
	Nodes int    `json:"nodes"`
}

// Info summarizes a registered region without walking its live tree.
func (r *Region) Info() RegionInfo {
	return RegionInfo{ID: r.ID, Class: r.Class.String(), Nodes: r.nodes}
}

// Registry maps sourceId to live regions.
type Registry struct {
	mu      sync.RWMutex
	regions map[string]*Region
}

func NewRegistry() *Registry {
	return &Registry{regions: make(map[string]*Region)}
}

func (r *Registry) Register(region *Region) error {
	if region == nil || region.ID == "" {
		return errors.New("visual: region id required")
	}
	if region.Root == nil {
		return fmt.Errorf("visual: region %q has no root", region.ID)
	}
	region.nodes = len(region.Root.Descendants()) + 1
	r.mu.Lock()
	r.regions[region.ID] = region
	r.mu.Unlock()
	return nil
}

func (r *Registry) Lookup(id string) (*Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	region, ok := r.regions[id]
	return region, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.regions, id)
	r.mu.Unlock()
}

// List returns a summary of every registered region sorted by id.
func (r *Registry) List() []RegionInfo {
	r.mu.RLock()
	infos := make([]RegionInfo, 0, len(r.regions))
	for _, region := range r.regions {
		infos = append(infos, region.Info())
	}
	r.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
