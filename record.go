package lpscrape

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is a schema-conformant extraction result. Every field of the
// schema is present as a key. Values are string, []string,
// map[string]string, a nested Record for object fields, or nil when the
// page did not state the value.
type Record map[string]any

// Present reports whether the named field holds a non-absent value.
func (r Record) Present(name string) bool {
	return present(r[name])
}

// String returns the named string field, or "" when absent or not a string.
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Strings returns the named list field, or nil when absent or not a list.
func (r Record) Strings(name string) []string {
	l, _ := r[name].([]string)
	return l
}

// StringMap returns the named map field, or nil when absent or not a map.
func (r Record) StringMap(name string) map[string]string {
	m, _ := r[name].(map[string]string)
	return m
}

func present(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case map[string]string:
		return len(v) > 0
	case Record:
		for _, sub := range v {
			if present(sub) {
				return true
			}
		}
		return false
	}
	return true
}

// absentTokens are strings models emit in place of a missing value.
var absentTokens = map[string]bool{
	"":          true,
	"null":      true,
	"none":      true,
	"nil":       true,
	"n/a":       true,
	"undefined": true,
}

// CoerceRecord maps a decoded model response onto schema. Unknown keys are
// ignored, missing fields become nil, and values are converted to the
// field type where that is safe and dropped to nil where it is not.
// CoerceRecord never fails.
func CoerceRecord(raw map[string]any, schema *Schema) Record {
	return coerceFields(raw, schema.Fields)
}

func coerceFields(raw map[string]any, fields []Field) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		rec[f.Name] = coerceValue(raw[f.Name], f)
	}
	return rec
}

func coerceValue(v any, f Field) any {
	switch f.Type {
	case FieldString:
		return coerceString(v)
	case FieldStringList:
		return coerceList(v)
	case FieldStringMap:
		return coerceMap(v)
	case FieldObject:
		var m map[string]any
		switch v := v.(type) {
		case map[string]any:
			m = v
		case Record:
			m = v
		default:
			return nil
		}
		rec := coerceFields(m, f.Fields)
		if !present(rec) {
			return nil
		}
		return rec
	}
	return nil
}

// coerceString converts scalars to a trimmed string and joins lists.
func coerceString(v any) any {
	if l, ok := v.([]any); ok {
		parts := coerceList(l)
		if parts == nil {
			return nil
		}
		return strings.Join(parts.([]string), ", ")
	}
	s, ok := scalarString(v)
	if !ok {
		return nil
	}
	return s
}

func coerceList(v any) any {
	var out []string
	switch v := v.(type) {
	case []any:
		for _, item := range v {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
	default:
		if s, ok := scalarString(v); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coerceMap(v any) any {
	out := make(map[string]string)
	switch v := v.(type) {
	case map[string]any:
		for k, val := range v {
			if s, ok := mapValue(val); ok && strings.TrimSpace(k) != "" {
				out[strings.TrimSpace(k)] = s
			}
		}
	case map[string]string:
		for k, val := range v {
			if s, ok := scalarString(val); ok && strings.TrimSpace(k) != "" {
				out[strings.TrimSpace(k)] = s
			}
		}
	case []any:
		// Pair lists such as [{"name": "Weight", "value": "2 kg"}].
		for _, item := range v {
			pair, ok := item.(map[string]any)
			if !ok {
				continue
			}
			k, kok := scalarString(firstOf(pair, "name", "key"))
			val, vok := mapValue(firstOf(pair, "value"))
			if kok && vok {
				out[k] = val
			}
		}
	default:
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapValue(v any) (string, bool) {
	if l, ok := v.([]any); ok {
		parts, _ := coerceList(l).([]string)
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	}
	return scalarString(v)
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// scalarString stringifies strings, numbers and booleans. Absent markers
// and composite values report false.
func scalarString(v any) (string, bool) {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = formatFloat(v)
	case float32:
		s = formatFloat(float64(v))
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if absentTokens[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MissingFields returns the names of top-level schema fields that are
// absent from r, sorted.
func (r Record) MissingFields(schema *Schema) []string {
	var missing []string
	for _, f := range schema.Fields {
		if !r.Present(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	sort.Strings(missing)
	return missing
}
