package textutil

import "strings"

// NormalizeStringMap trims keys and values and drops blank keys. The result is never nil so it
// serialises as an empty object.
func NormalizeStringMap(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		if key = strings.TrimSpace(key); key != "" {
			result[key] = strings.TrimSpace(value)
		}
	}
	return result
}
