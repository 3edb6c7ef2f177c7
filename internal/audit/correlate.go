package audit

import (
	"fmt"
	"sort"
	"strings"
)

// minIDFieldLength is the shortest field name treated as an entity
// identifier ("aId" qualifies, "Id" alone does not).
const minIDFieldLength = 3

// CollectEntityIDs extracts correlation identifiers from a decoded
// request or response shape: every top-level field whose name ends in
// "Id" or "ID" contributes its value. The result is deduplicated and
// sorted.
func CollectEntityIDs(values ...map[string]any) []string {
	seen := make(map[string]struct{})
	for _, m := range values {
		for name, value := range m {
			if !isIDField(name) {
				continue
			}
			s := stringValue(value)
			if s == "" {
				continue
			}
			seen[s] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// isIDField reports whether the field name designates an entity
// identifier.
func isIDField(name string) bool {
	if len(name) < minIDFieldLength {
		return false
	}
	return strings.HasSuffix(name, "Id") || strings.HasSuffix(name, "ID")
}

// stringValue renders a scalar identifier value; non-scalar values are
// skipped.
func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}
