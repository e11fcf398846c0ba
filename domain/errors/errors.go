// Package errors provides the typed failures of the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/ffibridge/domain/entities"
)

// Sentinels matched by errors.Is against the typed errors below.
var (
	ErrSchemaMismatch  = stdErrors.New("schema mismatch")
	ErrRange           = stdErrors.New("value out of range")
	ErrUnknownHandle   = stdErrors.New("unknown handle")
	ErrUnknownSelector = stdErrors.New("unknown selector")
	ErrNativeCall      = stdErrors.New("native call failed")
	ErrLibraryLoad     = stdErrors.New("library load failed")
	ErrRegistryClosed  = stdErrors.New("callback registry closed")
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface to be reported across the boundary.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	// If the error is already a *ErrorDetail (entity), use it directly.
	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	// Generic error - categorize as internal
	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
		Code:    "INTERNAL_ERROR",
	}
}

// SchemaMismatchError reports a decoded value that is missing or does not
// match its declared schema.
type SchemaMismatchError struct {
	Err      error
	Path     string
	Expected string
	Got      string
}

func (e *SchemaMismatchError) Error() string {
	msg := "schema mismatch"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Expected != "" {
		msg += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Got)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// ToErrorDetail implements DetailedError.
func (e *SchemaMismatchError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "schema", Code: "SCHEMA_MISMATCH"}
}

// RangeError reports a value that cannot be represented by its declared
// scalar type. It is raised at encode time, before any native call.
type RangeError struct {
	Path  string
	Kind  string
	Value string
}

func (e *RangeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("value %s out of range for %s at %s", e.Value, e.Kind, e.Path)
	}
	return fmt.Sprintf("value %s out of range for %s", e.Value, e.Kind)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

// ToErrorDetail implements DetailedError.
func (e *RangeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "range", Code: "RANGE_ERROR"}
}

// UnknownHandleError reports a handle that was never registered or has
// already been released. It is an expected, recoverable condition.
type UnknownHandleError struct {
	Handle entities.Handle
}

func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("unknown callback handle %d", uint64(e.Handle))
}

func (e *UnknownHandleError) Is(target error) bool {
	return target == ErrUnknownHandle
}

// ToErrorDetail implements DetailedError.
func (e *UnknownHandleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "handle", Code: "UNKNOWN_HANDLE", IsNotFound: true}
}

// UnknownSelectorError reports a selector outside a callback interface's
// method table.
type UnknownSelectorError struct {
	Interface string
	Selector  int32
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("callback %s has no method with selector %d", e.Interface, e.Selector)
}

func (e *UnknownSelectorError) Is(target error) bool {
	return target == ErrUnknownSelector
}

// ToErrorDetail implements DetailedError.
func (e *UnknownSelectorError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "dispatch", Code: "UNKNOWN_SELECTOR", IsNotFound: true}
}

// NativeCallError reports a failure signalled by the native side: a trap, the
// null-payload sentinel, or a result that could not be decoded.
type NativeCallError struct {
	Err        error
	Function   string
	Entry      string
	Diagnostic string
}

func (e *NativeCallError) Error() string {
	msg := fmt.Sprintf("native call %s (%s) failed", e.Function, e.Entry)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *NativeCallError) Unwrap() error {
	return e.Err
}

func (e *NativeCallError) Is(target error) bool {
	return target == ErrNativeCall
}

// ToErrorDetail implements DetailedError.
func (e *NativeCallError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "native", Code: e.Entry}
}

// LibraryLoadError reports that the native module could not be loaded. It is
// fatal: no bridge function may be called afterwards.
type LibraryLoadError struct {
	Err    error
	Module string
}

func (e *LibraryLoadError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("failed to load native module %s: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("failed to load native module: %v", e.Err)
}

func (e *LibraryLoadError) Unwrap() error {
	return e.Err
}

func (e *LibraryLoadError) Is(target error) bool {
	return target == ErrLibraryLoad
}

// ToErrorDetail implements DetailedError.
func (e *LibraryLoadError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "LIBRARY_LOAD_ERROR"}
}

// PanicError represents a recovered panic inside a host callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "panic", Code: "PANIC"}
}
