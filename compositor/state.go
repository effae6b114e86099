package compositor

import "log"

type State int

const (
	StateNone State = iota
	StateValidated
	StateCapturing
	StateRestoring
	StateDecorating
	StateRendered // Render stops here, nothing is persisted
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateCapturing:
		return "capturing"
	case StateRestoring:
		return "restoring"
	case StateDecorating:
		return "decorating"
	case StateRendered:
		return "rendered"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	}
	return "none"
}

func (s State) Terminal() bool {
	return s == StateRendered || s == StatePersisted || s == StateFailed
}

// Transition is one observed state change of a request.
type Transition struct {
	SourceID string
	From     State
	To       State
	Err      error // set when To is StateFailed
}

type tracker struct {
	sourceID string
	state    State
	hook     func(Transition)
}

func (t *tracker) to(s State) {
	if t.state.Terminal() {
		return
	}
	tr := Transition{SourceID: t.sourceID, From: t.state, To: s}
	t.state = s
	log.Printf("[INFO][EXPORT] %s: %s -> %s", tr.SourceID, tr.From, tr.To)
	if t.hook != nil {
		t.hook(tr)
	}
}

func (t *tracker) fail(err error) {
	if t.state.Terminal() {
		return
	}
	tr := Transition{SourceID: t.sourceID, From: t.state, To: StateFailed, Err: err}
	t.state = StateFailed
	log.Printf("[ERROR][EXPORT] %s: %s -> failed: %v", tr.SourceID, tr.From, err)
	if t.hook != nil {
		t.hook(tr)
	}
}
