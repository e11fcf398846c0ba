package entities

// ErrorDetail is the failure half of a dispatch envelope: the structured form
// of a bridge error as it crosses to the native side.
// Types: "schema", "range", "handle", "dispatch", "native", "load", "panic", "internal"
type ErrorDetail struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	IsNotFound bool   `json:"is_not_found,omitempty"`
}

// Error implements the error interface as "type: message [code]". The
// "internal" type is omitted.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = e.Type + ": " + msg
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	return msg
}

// NewErrorDetail creates an ErrorDetail of the given type.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}

// WithCode sets the code and returns e.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
