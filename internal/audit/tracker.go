package audit

import (
	"encoding/json"
	"reflect"
	"sort"
)

// FieldChange is one field whose value differs between the pre-image and
// the post-image of a tracked entity. Old/New hold the JSON encoding of the
// value; nil means the field was absent or null on that side.
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// Bookkeeping columns maintained by the storage layer; their churn carries
// no audit value.
var skippedFields = map[string]bool{
	"updated_at": true,
}

// DiffFields compares two images of a tracked entity field by field and
// returns one change per differing field. Comparison is deep structural
// equality over the JSON form, so array- and object-valued fields compare
// as whole values. Both images must marshal to JSON objects.
func DiffFields(before, after any) ([]FieldChange, error) {
	beforeMap, err := toFieldMap(before)
	if err != nil {
		return nil, err
	}
	afterMap, err := toFieldMap(after)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(afterMap))
	seen := make(map[string]bool, len(afterMap))
	for name := range afterMap {
		fields = append(fields, name)
		seen[name] = true
	}
	for name := range beforeMap {
		if !seen[name] {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)

	changes := make([]FieldChange, 0)
	for _, name := range fields {
		if skippedFields[name] {
			continue
		}
		oldVal, hadOld := beforeMap[name]
		newVal, hasNew := afterMap[name]
		if hadOld && hasNew && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		change := FieldChange{Field: name}
		if hadOld && oldVal != nil {
			encoded, err := encodeValue(oldVal)
			if err != nil {
				return nil, err
			}
			change.Old = encoded
		}
		if hasNew && newVal != nil {
			encoded, err := encodeValue(newVal)
			if err != nil {
				return nil, err
			}
			change.New = encoded
		}
		if change.Old == nil && change.New == nil {
			continue // null on both sides
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func toFieldMap(image any) (map[string]any, error) {
	raw, err := json.Marshal(image)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeValue(v any) (*string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}
