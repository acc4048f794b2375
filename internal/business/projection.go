package business

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// FieldSchema is the compile-time classification of an entity type's raw
// API properties: Known keys become typed state, Secondary keys are kept in
// a side bag, everything else lands in the extra bag so upstream schema
// drift never loses data.
type FieldSchema struct {
	Known     []string
	Secondary []string
}

// FieldBag holds the projected raw properties of a hydrated entity.
type FieldBag struct {
	Known map[string]any
	Other map[string]any
	Extra map[string]any
}

func newFieldBag() FieldBag {
	return FieldBag{
		Known: map[string]any{},
		Other: map[string]any{},
		Extra: map[string]any{},
	}
}

/*
 * AssignKnownFields projects a raw API entity onto a destination bag.
 * A nil/empty raw entity is a no-op: existing fields are left untouched.
 * The raw map itself is never mutated (classification works on a shallow
 * copy). Projecting the same entity twice yields the same result.
 */
func AssignKnownFields(dst *FieldBag, entityType string, raw map[string]any, schema FieldSchema) {
	if raw == nil {
		return
	}
	if dst.Known == nil {
		*dst = newFieldBag()
	}

	remaining := make(map[string]any, len(raw))
	for k, v := range raw {
		remaining[k] = v
	}

	for _, key := range schema.Known {
		if value, ok := remaining[key]; ok {
			dst.Known[key] = value
			delete(remaining, key)
		}
	}
	for _, key := range schema.Secondary {
		if value, ok := remaining[key]; ok {
			dst.Other[key] = value
			delete(remaining, key)
		}
	}
	for key, value := range remaining {
		dst.Extra[key] = value
	}

	if len(remaining) > 0 {
		logrus.Debugf("%s entity carried %d unrecognized properties", entityType, len(remaining))
	}
}

// String returns the known property as a string, or "" when absent.
func (b *FieldBag) String(key string) string {
	if value, ok := b.Known[key].(string); ok {
		return value
	}
	return ""
}

// Int64 returns the known property as an int64, tolerating the float64
// shape encoding/json produces for untyped numbers.
func (b *FieldBag) Int64(key string) int64 {
	switch value := b.Known[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	case json.Number:
		n, err := value.Int64()
		if err == nil {
			return n
		}
	}
	return 0
}

func (b *FieldBag) Bool(key string) bool {
	if value, ok := b.Known[key].(bool); ok {
		return value
	}
	return false
}
