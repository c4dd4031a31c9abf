package catalog

import (
	"strings"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// Match resolves a loose external reference against one catalog slice.
// Two tiers: exact match on the normalized natural key, then
// case-insensitive substring match on the display name. The first match in
// catalog order wins; ok=false means both tiers came up empty.
func Match(entries []Entry, query string) (Entry, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Entry{}, false
	}

	key := schema.NormalizeKey(query)
	if key != "" {
		for _, e := range entries {
			if schema.NormalizeKey(e.NaturalKey) == key {
				return e, true
			}
		}
	}

	lower := strings.ToLower(query)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.DisplayName), lower) {
			return e, true
		}
	}

	return Entry{}, false
}
