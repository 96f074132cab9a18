package feed

import (
	"utadex/internal/models"
)

// mergeDisplayItems builds the next snapshot list from the previous
// one, keeping the old value for every item that did not change.
// Reports whether anything changed at all.
func mergeDisplayItems(old, next []models.DisplayItem) ([]models.DisplayItem, bool) {
	if len(old) != len(next) {
		return next, true
	}

	changed := false
	merged := make([]models.DisplayItem, len(next))
	for i := range next {
		if old[i].Equal(&next[i]) {
			merged[i] = old[i]
			continue
		}
		merged[i] = next[i]
		changed = true
	}
	return merged, changed
}
