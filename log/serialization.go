package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// LogMessageWire is the JSON form of one log line sent by the native side
// through the log_message host export.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp,omitempty"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire represents a single slog attribute for wire transfer.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "group", "any"
	Value string `json:"value"` // String representation of the value
}

// EncodeRecord renders a slog record in the log_message wire form. Attrs
// carries attributes accumulated by a handler ahead of the record's own.
func EncodeRecord(record slog.Record, attrs ...slog.Attr) ([]byte, error) {
	msg := LogMessageWire{
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}
	for _, a := range attrs {
		msg.Attrs = append(msg.Attrs, toLogAttrWire(a))
	}
	record.Attrs(func(a slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, toLogAttrWire(a))
		return true
	})
	return json.Marshal(msg)
}

// DecodeMessage parses a log_message payload.
func DecodeMessage(payload []byte) (*LogMessageWire, error) {
	var msg LogMessageWire
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode log message: %w", err)
	}
	return &msg, nil
}

// ParseLevel maps a wire level name ("DEBUG", "warn", "INFO+2") to a slog
// level. Unknown names map to Info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// toLogAttrWire converts a slog.Attr to LogAttrWire.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	wire := LogAttrWire{
		Key: attr.Key,
	}
	// Resolve the attribute value
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindAny:
		if v := attr.Value.Any(); v != nil {
			if err, isErr := v.(error); isErr {
				wire.Type = "error"
				wire.Value = err.Error()
			} else if data, marshalErr := json.Marshal(v); marshalErr == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", v)
			}
		} else {
			wire.Type = "any"
			wire.Value = "<nil>"
		}
	case slog.KindGroup:
		// Groups are flattened into a JSON object of their resolved members.
		members := make(map[string]any)
		for _, a := range attr.Value.Group() {
			members[a.Key] = a.Value.Resolve().Any()
		}
		wire.Type = "group"
		if data, err := json.Marshal(members); err == nil {
			wire.Value = string(data)
		} else {
			wire.Value = fmt.Sprintf("%v", members)
		}
	default:
		wire.Type = "any"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return wire
}

// fromLogAttrWire rebuilds a slog.Attr. Values that fail to parse as their
// declared type are kept as strings.
func fromLogAttrWire(wire LogAttrWire) slog.Attr {
	switch wire.Type {
	case "int64":
		if n, err := strconv.ParseInt(wire.Value, 10, 64); err == nil {
			return slog.Int64(wire.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(wire.Value, 10, 64); err == nil {
			return slog.Uint64(wire.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(wire.Value); err == nil {
			return slog.Bool(wire.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(wire.Value, 64); err == nil {
			return slog.Float64(wire.Key, f)
		}
	case "time":
		if ts, err := time.Parse(time.RFC3339Nano, wire.Value); err == nil {
			return slog.Time(wire.Key, ts)
		}
	case "duration":
		if d, err := time.ParseDuration(wire.Value); err == nil {
			return slog.Duration(wire.Key, d)
		}
	case "json", "group":
		if json.Valid([]byte(wire.Value)) {
			return slog.Any(wire.Key, json.RawMessage(wire.Value))
		}
	}
	return slog.String(wire.Key, wire.Value)
}
