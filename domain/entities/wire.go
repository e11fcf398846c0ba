package entities

// DispatchResult is the envelope the dispatcher returns to the native side
// for non-void results and for every failure. A successful void call returns
// an empty payload instead.
type DispatchResult struct {
	// Value is the wire form of the method result.
	Value any `json:"value,omitempty"`

	// Error is set when the dispatch failed.
	Error *ErrorDetail `json:"error,omitempty"`
}

// OK reports whether the envelope carries a result rather than a failure.
func (r *DispatchResult) OK() bool {
	return r.Error == nil
}
