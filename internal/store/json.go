package store

import "encoding/json"

// marshalList encodes a string slice as JSON, never failing ("[]" for nil).
func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalList decodes a JSON string array; malformed input yields nil.
func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// marshalInts encodes an int slice as JSON ("[]" for nil).
func marshalInts(list []int) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// unmarshalInts decodes a JSON int array; malformed input yields nil.
func unmarshalInts(raw string) []int {
	if raw == "" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
