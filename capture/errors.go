package capture

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindSourceUnavailable Kind = iota + 1
	KindStructureIncomplete
	KindCaptureFailure
	KindRestoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindStructureIncomplete:
		return "StructureIncomplete"
	case KindCaptureFailure:
		return "CaptureFailure"
	case KindRestoreFailure:
		return "RestoreFailure"
	}
	return "Unknown"
}

// Error is the failure type surfaced by every pipeline stage.
type Error struct {
	Kind     Kind
	Op       string // stage or operation that failed
	Err      error
	Restored bool // the failing capture undid its mutations before returning
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// MarkRestored records on err that the source was put back before the
// failure was returned. Foreign errors become a CaptureFailure.
func MarkRestored(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(KindCaptureFailure, "capture", err)
		err = e
	}
	e.Restored = true
	return err
}

// WasRestored reports whether err came from a capture that had mutated the
// source and undid it.
func WasRestored(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Restored
}

// UserMessage is the single human readable message for the failure category.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindSourceUnavailable:
		return "Could not find the content to export. Open the preview and try again."
	case KindStructureIncomplete:
		return "Schedule elements not found. Please load the schedule view first."
	case KindRestoreFailure:
		return "The document was generated but the preview could not be fully restored. Reload the page."
	default:
		return "Error generating PDF. Please try again."
	}
}

var (
	ErrSourceUnavailable   = &Error{Kind: KindSourceUnavailable}
	ErrStructureIncomplete = &Error{Kind: KindStructureIncomplete}
	ErrCaptureFailure      = &Error{Kind: KindCaptureFailure}
	ErrRestoreFailure      = &Error{Kind: KindRestoreFailure}
)

func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or CaptureFailure for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCaptureFailure
}

// UserMessage returns the user facing message for any error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return (&Error{Kind: KindCaptureFailure}).UserMessage()
}
