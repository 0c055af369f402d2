// Package matcher resolves raw visitor input against a menu's options.
package matcher

import (
	"sort"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// Resolve normalizes rawInput (trim, case-fold) and returns the first
// active item whose normalized key matches exactly, in ascending position
// order. Returns nil when the menu is inactive, has no items, or nothing
// matches. Matching is exact; there is no fuzzy or prefix matching.
func Resolve(menu *model.Menu, items []model.MenuItem, rawInput string) *model.MenuItem {
	if menu == nil || !menu.Active || len(items) == 0 {
		return nil
	}

	input := model.NormalizeKey(rawInput)
	if input == "" {
		return nil
	}

	ordered := make([]model.MenuItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	for i := range ordered {
		if !ordered[i].Active {
			continue
		}
		if model.NormalizeKey(ordered[i].Key) == input {
			return &ordered[i]
		}
	}
	return nil
}
