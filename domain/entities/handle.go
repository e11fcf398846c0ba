package entities

import "strconv"

// Handle is an opaque identifier for a registered host callback.
// Handles are issued monotonically and are never reused within a registry.
type Handle uint64

// InvalidHandle is reserved and never issued.
const InvalidHandle Handle = 0

// Valid reports whether h is not the reserved zero handle.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// Registration is a live handle → callback mapping.
type Registration struct {
	Callback  any
	Interface *CallbackInterface
	Handle    Handle
	OneShot   bool
}
