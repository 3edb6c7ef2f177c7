package dispatch

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// nullToken serializes fields absent from the result in the cache hash.
const nullToken = "null"

// CacheHash computes the response cache hash: SHA-1 over the pipe-joined
// string forms of the named top-level result fields. The hash is
// deliberately shallow; nested-object differences that keep the same
// default string form do not change it.
func CacheHash(result any, fields []string) string {
	values := topLevelValues(result)
	parts := make([]string, len(fields))
	for i, field := range fields {
		value, ok := values[field]
		if !ok || value == nil {
			parts[i] = nullToken
			continue
		}
		parts[i] = fmt.Sprintf("%v", value)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// topLevelValues projects a result onto its top-level fields. Struct
// results are projected through their JSON form so field names match
// the wire representation.
func topLevelValues(result any) map[string]any {
	if result == nil {
		return nil
	}
	if m, ok := result.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
