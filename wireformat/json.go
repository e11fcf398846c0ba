package wireformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/reglet-dev/ffibridge/domain/ports"
)

type jsonFormat struct{}

// JSON returns the textual wire format. Numbers decode as json.Number so that
// 64-bit integers survive without passing through float64.
func JSON() ports.WireFormat {
	return jsonFormat{}
}

func (jsonFormat) Name() string {
	return NameJSON
}

func (jsonFormat) Marshal(tree any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (jsonFormat) Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("json: unexpected data after payload")
	}
	return tree, nil
}

func (jsonFormat) AllowsNonFinite() bool {
	return false
}
