package responses

type Message struct {
	Type    string `json:"type"` // "error", etc
	Message string `json:"message"`
	Code    int    `json:"code"` // application-level logic code
}

// application-level codes of error Messages
const (
	CodeNone = iota
	CodeSourceUnavailable
	CodeStructureIncomplete
	CodeCaptureFailure
	CodeRestoreFailure
	CodeBusy
	CodeInvalidRequest
	CodeUnauthorized
	CodeThrottled
)
