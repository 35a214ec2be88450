// Package dedup merges advisory lists coming from several sources.
package dedup

import (
	"github.com/aquasecurity/advisory-aggregator/types"
)

// Key identifies an advisory across sources: its ID, or its detail URL when the ID is empty.
func Key(a types.Advisory) string {
	if a.ID != "" {
		return a.ID
	}
	return a.DetailURL
}

// Dedupe concatenates the lists in the given order and keeps the first occurrence of every key.
// Fields of later duplicates are discarded, not merged. Records without any key are dropped.
func Dedupe(lists ...[]types.Advisory) []types.Advisory {
	seen := map[string]struct{}{}
	result := []types.Advisory{}
	for _, list := range lists {
		for _, a := range list {
			key := Key(a)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, a)
		}
	}
	return result
}
