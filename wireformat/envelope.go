package wireformat

import (
	"fmt"

	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/domain/ports"
)

// EncodeResult encodes a dispatch envelope. The envelope is converted to a
// plain wire tree first so every format sees the same field names.
func EncodeResult(f ports.WireFormat, r *entities.DispatchResult) ([]byte, error) {
	tree := make(map[string]any, 1)
	if r.Error != nil {
		detail := map[string]any{
			"message": r.Error.Message,
			"type":    r.Error.Type,
			"code":    r.Error.Code,
		}
		if r.Error.IsNotFound {
			detail["is_not_found"] = true
		}
		tree["error"] = detail
	} else {
		tree["value"] = r.Value
	}
	return f.Marshal(tree)
}

// DecodeResult decodes a dispatch envelope. Value is left as a wire tree.
func DecodeResult(f ports.WireFormat, data []byte) (*entities.DispatchResult, error) {
	tree, err := f.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dispatch envelope must be a map, got %T", tree)
	}

	res := &entities.DispatchResult{Value: m["value"]}
	if raw, ok := m["error"]; ok && raw != nil {
		em, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dispatch envelope error must be a map, got %T", raw)
		}
		res.Error = &entities.ErrorDetail{
			Message: stringField(em, "message"),
			Type:    stringField(em, "type"),
			Code:    stringField(em, "code"),
		}
		if nf, ok := em["is_not_found"].(bool); ok {
			res.Error.IsNotFound = nf
		}
	}
	return res, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
