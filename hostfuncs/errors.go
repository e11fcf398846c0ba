package hostfuncs

import (
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/wireformat"
)

// Failure envelope codes for conditions detected by the dispatcher itself.
// Errors raised by callbacks carry the code of their DetailedError, or
// INTERNAL_ERROR.
const (
	CodeUnknownHandle   = "UNKNOWN_HANDLE"
	CodeUnknownSelector = "UNKNOWN_SELECTOR"
	CodeSchemaMismatch  = "SCHEMA_MISMATCH"
	CodeRange           = "RANGE_ERROR"
	CodePanic           = "PANIC"
	CodeInternal        = "INTERNAL_ERROR"
)

// NewFailure builds the failure envelope for err.
func NewFailure(err error) *entities.DispatchResult {
	return &entities.DispatchResult{Error: domainerrors.ToErrorDetail(err)}
}

// encodeFailure encodes the failure envelope for err. The fallback is returned
// if even the envelope cannot be encoded.
func encodeFailure(f ports.WireFormat, err error, fallback []byte) []byte {
	data, encErr := wireformat.EncodeResult(f, NewFailure(err))
	if encErr != nil {
		return fallback
	}
	return data
}

// internalFailure pre-encodes a generic failure envelope for format f.
func internalFailure(f ports.WireFormat) []byte {
	data, err := wireformat.EncodeResult(f, &entities.DispatchResult{
		Error: entities.NewErrorDetail("internal", "failed to encode dispatch result").WithCode(CodeInternal),
	})
	if err != nil {
		return nil
	}
	return data
}
