package extractor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// extractJSON flattens nested objects and arrays into
// "dotted.path[index]: scalar" lines. Parse failures fall back to the
// raw decoded text.
func extractJSON(content []byte) string {
	text := decodeText(content)

	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return text
	}
	return flattenJSON(data, "")
}

func flattenJSON(value interface{}, prefix string) string {
	switch typed := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var parts []string
		for _, key := range keys {
			childPrefix := key
			if prefix != "" {
				childPrefix = prefix + "." + key
			}
			if part := flattenJSON(typed[key], childPrefix); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "\n")
	case []interface{}:
		var parts []string
		for i, item := range typed {
			if part := flattenJSON(item, fmt.Sprintf("%s[%d]", prefix, i)); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	default:
		scalar := strings.TrimSpace(fmt.Sprint(typed))
		if scalar == "" {
			return ""
		}
		return fmt.Sprintf("%s: %s", prefix, scalar)
	}
}
