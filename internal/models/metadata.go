package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Metadata is the open, workflow-specific key/value map carried by tasks and
// extractions. Values are restricted to string, float64, bool and []string;
// Sanitize enforces that on anything decoded from outside.
type Metadata map[string]any

// Well-known metadata keys.
const (
	MetaInvoiceNumber = "invoiceNumber"
	MetaCustomerName  = "customerName"
	MetaAmount        = "amount"
	MetaPaid          = "paid"
	MetaMonth         = "month"
	MetaYear          = "year"
	MetaVersion       = "version"
	MetaModelName     = "modelName"
	MetaVendorName    = "vendorName"
	MetaCategory      = "category"
	MetaDepartment    = "department"
	MetaDueDate       = "dueDate"
	MetaShortID       = "shortId"
	MetaDisplayTitle  = "displayTitle"
)

// Sanitize copies raw into a Metadata, keeping only the supported scalar
// kinds. Integers become float64, lists keep only their string elements and
// nested objects are dropped.
func Sanitize(raw map[string]any) Metadata {
	out := make(Metadata, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = val
		case float64:
			out[k] = val
		case float32:
			out[k] = float64(val)
		case int:
			out[k] = float64(val)
		case int64:
			out[k] = float64(val)
		case json.Number:
			if f, err := val.Float64(); err == nil {
				out[k] = f
			}
		case []string:
			out[k] = append([]string(nil), val...)
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					list = append(list, s)
				}
			}
			out[k] = list
		}
	}
	return out
}

// Clone returns a shallow copy. A nil map clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Merge returns m overlaid with other. Keys in other win; keys only in m are
// kept.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// String returns the value at key as a non-empty string. Numbers are
// formatted without a trailing fraction.
func (m Metadata) String(key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// Float returns the value at key as a number. Numeric strings, with optional
// "$" and thousands separators, are accepted.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		s := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(v))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool returns the value at key as a boolean.
func (m Metadata) Bool(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}
