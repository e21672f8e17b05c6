// Package lock serializes balance read-modify-write cycles per account.
package lock

import (
	"sort"
)

// orderedKeys dedupes and sorts ids so every caller acquires locks in the
// same order, which rules out deadlocks between two-account operations.
func orderedKeys(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
