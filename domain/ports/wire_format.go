package ports

// WireFormat is a self-describing encoding for aggregate payloads. Both sides
// of the bridge must be configured with the same format.
type WireFormat interface {
	// Name identifies the format ("json", "cbor").
	Name() string

	// Marshal encodes a wire tree: nil, bool, int64, uint64, float32, float64,
	// string, []any and map[string]any.
	Marshal(tree any) ([]byte, error)

	// Unmarshal decodes a payload into a wire tree.
	Unmarshal(data []byte) (any, error)

	// AllowsNonFinite reports whether NaN and ±Inf floats can be encoded.
	AllowsNonFinite() bool
}
