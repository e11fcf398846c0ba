package codec

import (
	"reflect"
	"strings"
	"sync"
)

// TagName is the struct tag naming a field on the wire. When absent the json
// tag is used, then the Go field name.
const TagName = "bridge"

var fieldCache sync.Map // reflect.Type -> map[string][]int

// fieldsOf maps wire field names to field indexes of struct type t.
func fieldsOf(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}

	fields := make(map[string][]int)
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || (sf.Anonymous && isStructType(sf.Type)) {
			continue
		}
		name := wireName(sf)
		if name == "" {
			continue
		}
		// Shallower fields win, matching Go's promotion rules.
		if prev, dup := fields[name]; dup && len(prev) <= len(sf.Index) {
			continue
		}
		fields[name] = sf.Index
	}

	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.(map[string][]int)
}

func wireName(sf reflect.StructField) string {
	for _, key := range []string{TagName, "json"} {
		tag, ok := sf.Tag.Lookup(key)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return sf.Name
}

func isStructType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
