package cards

import (
	"fmt"
	"strings"
)

// Record is one LLM-produced credit card object before sanitization.
type Record = map[string]any

// Normalize is the single entry point resolving the shapes LLM output shows
// up in: a bare list, {"credit_cards": [...]}, the validation wrapper
// {"validation_errors": ..., "data": [...]}, or a single object.
func Normalize(data any) ([]Record, error) {
	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("cards: no credit card data found")
	case []Record:
		return v, nil
	case []any:
		records := make([]Record, 0, len(v))
		for _, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cards: list item is not an object")
			}
			records = append(records, rec)
		}
		return records, nil
	case map[string]any:
		if inner, ok := v["credit_cards"]; ok {
			return Normalize(inner)
		}
		if inner, ok := v["data"]; ok {
			return Normalize(inner)
		}
		if _, ok := v["raw_parsed_content"]; ok {
			return nil, fmt.Errorf("cards: data contains raw content, not structured credit card data")
		}
		return []Record{v}, nil
	default:
		return nil, fmt.Errorf("cards: invalid data format: expected object or list")
	}
}

// HasTopLevelError reports whether the parsed result is an error object
// rather than card data, returning the error text when it is.
func HasTopLevelError(data any) (string, bool) {
	obj, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	errVal, ok := obj["error"]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(fmt.Sprint(errVal)), true
}

// ValidationWrapper splits the {"validation_errors": ..., "data": ...} shape
// the parser emits for records that failed validation. The second return is
// the payload to keep processing with.
func ValidationWrapper(data any) (errors []string, payload any, wrapped bool) {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, data, false
	}
	raw, ok := obj["validation_errors"]
	if !ok {
		return nil, data, false
	}
	if list, ok := raw.([]any); ok {
		for _, item := range list {
			errors = append(errors, fmt.Sprint(item))
		}
	} else if list, ok := raw.([]string); ok {
		errors = list
	}
	if inner, ok := obj["data"]; ok {
		return errors, inner, true
	}
	return errors, data, true
}
