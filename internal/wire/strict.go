package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// decodeStrict unmarshals raw (already stripped of message_id/message_type)
// into a T, requiring every json-tagged field of T that is not marked
// omitempty to be present and rejecting any field raw carries that T does not declare. This
// implements spec.md §4.A's "missing field" / "unknown field" errors
// without hand-rolling a JSON parser: encoding/json still does the actual
// decoding, reflection is used only to compare the field-name sets.
func decodeStrict[T any](raw map[string]json.RawMessage) (T, error) {
	var zero T
	t := reflect.TypeOf(zero)

	tagSet := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := jsonFieldName(t.Field(i))
		if name == "" {
			continue
		}
		tagSet[name] = true
		if _, present := raw[name]; !present && !jsonOmitempty(t.Field(i)) {
			return zero, fmt.Errorf("missing field %q", name)
		}
	}
	for k := range raw {
		if !tagSet[k] {
			return zero, fmt.Errorf("unknown field %q", k)
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return zero, err
	}
	var val T
	if err := json.Unmarshal(b, &val); err != nil {
		return zero, err
	}
	return val, nil
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	return name
}

// jsonOmitempty reports whether f's json tag carries the ,omitempty
// option — such fields are absent from raw whenever encoding/json
// marshalled their zero value, so decodeStrict must not require them.
func jsonOmitempty(f reflect.StructField) bool {
	tag := f.Tag.Get("json")
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			return true
		}
	}
	return false
}
