// Package abi defines the packed pointer/length words used to reference
// payloads in native linear memory.
package abi

import "fmt"

// PtrHighBits is the shift of the pointer half of a packed reference.
const PtrHighBits = 32

// Null is the packed reference of an absent payload. Native functions return
// it as the failure sentinel for aggregate results.
const Null uint64 = 0

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)  //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}

// Validate rejects a packed reference with a null pointer and a non-zero
// length, which no allocator can produce.
func Validate(packed uint64) error {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 && length > 0 {
		return fmt.Errorf("abi: invalid reference - null pointer (0x0) with non-zero length (%d)", length)
	}
	return nil
}
