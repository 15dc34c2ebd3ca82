package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one image hit as returned by the search API. Its shape is not
// enforced; only the fields selected at write time matter. Numbers decoded
// from the API are json.Number so they render exactly as sent.
type Record map[string]interface{}

// Get returns the value stored under field
func (r Record) Get(field string) (interface{}, bool) {
	v, ok := r[field]
	return v, ok
}

// Text renders a field as a table cell. Absent and null fields render empty.
func (r Record) Text(field string) string {
	v, ok := r[field]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// FormatValue renders a decoded JSON value as plain text
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
