package feed

import (
	"cmp"
	"slices"

	"reviewfeed/internal/models"
)

// Descendants returns rootID followed by every category below it, breadth
// first. Cyclic parent chains are cut at the first repeat.
func Descendants(categories []models.Category, rootID uint) []uint {
	children := make(map[uint][]uint, len(categories))
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	visited := map[uint]struct{}{rootID: {}}
	out := []uint{rootID}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			out = append(out, child)
		}
	}
	return out
}

// SortCategories puts positioned categories first, highest position first.
func SortCategories(categories []models.Category) {
	slices.SortStableFunc(categories, func(a, b models.Category) int {
		ap, bp := a.Position > 0, b.Position > 0
		if ap != bp {
			if ap {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Position, a.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
