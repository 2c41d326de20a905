package datasource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseOutput decodes a command's JSON output into records. A single object is
// treated as a one-element list. Each element is reduced to the fields listed in
// mapping; elements that end up empty are dropped.
func ParseOutput(raw []byte, mapping map[string]string) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON output: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("expected a JSON object or array, got %T", doc)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := make(Record, len(mapping))
		for field, key := range mapping {
			value, ok := obj[key]
			if !ok || value == nil {
				continue
			}
			rec[field] = stringify(value)
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// StringifyValue converts a decoded configuration value to its record form.
func StringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return stringify(t)
	}
}
