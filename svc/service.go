package svc

// Service is a long running component started and awaited by conf.Core.
type Service interface {
	Start() error // bootstrapping error only
	Stop()
	// Done - shutdown error channel
	// Since consumed by conf.Core only, Do Not Close the channel in a method
	Done() <-chan error
	Name() string
}

const (
	StateREADY = iota
	StateRUNNING
	StateSTOPPED
)

func StateName(state int) string {
	switch state {
	case StateREADY:
		return "READY"
	case StateRUNNING:
		return "RUNNING"
	case StateSTOPPED:
		return "STOPPED"
	}
	return "UNKNOWN"
}
