package feed

import (
	"cmp"
	"slices"

	"reviewfeed/internal/models"
)

// ReplyIndex maps a comment id to the replies pointing at it.
type ReplyIndex struct {
	children map[uint][]*models.Comment
}

// NewReplyIndex indexes replies by ReplyToID. Comments without a parent are ignored.
func NewReplyIndex(replies []*models.Comment) *ReplyIndex {
	ix := &ReplyIndex{children: make(map[uint][]*models.Comment)}
	for _, r := range replies {
		ix.Add(r)
	}
	return ix
}

// Add indexes one reply.
func (ix *ReplyIndex) Add(r *models.Comment) {
	if r == nil || r.ReplyToID == nil {
		return
	}
	ix.children[*r.ReplyToID] = append(ix.children[*r.ReplyToID], r)
}

// Children returns the direct replies of id.
func (ix *ReplyIndex) Children(id uint) []*models.Comment {
	if ix == nil {
		return nil
	}
	return ix.children[id]
}

// Len is the number of indexed replies.
func (ix *ReplyIndex) Len() int {
	n := 0
	for _, c := range ix.children {
		n += len(c)
	}
	return n
}

// CollectReplies gathers the visible replies under rootID, deduplicated and
// newest first. With recursive unset only direct replies are considered.
// A malformed reply graph with cycles still terminates.
func CollectReplies(rootID uint, ix *ReplyIndex, recursive bool) []*models.Comment {
	visited := map[uint]struct{}{rootID: {}}
	queue := []uint{rootID}
	var found []*models.Comment

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range ix.Children(id) {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			if !IsVisibleReply(child) {
				continue
			}
			found = append(found, child)
			if recursive {
				queue = append(queue, child.ID)
			}
		}
	}

	out := DedupLatest(found)
	SortNewestFirst(out)
	return out
}

// dedupKey identifies an author's text on a product. Marketplace reviewers
// have no user id and are told apart by their marketplace name.
type dedupKey struct {
	userID    uint
	wbUser    string
	productID uint
	content   string
}

func keyOf(c *models.Comment) dedupKey {
	k := dedupKey{content: c.Content}
	if c.UserID != nil {
		k.userID = *c.UserID
	} else {
		k.wbUser = c.WbUser
	}
	if c.ProductID != nil {
		k.productID = *c.ProductID
	}
	return k
}

// DedupLatest keeps one comment per (author, product, content), the one with
// the latest effective date. Ties keep the higher id.
func DedupLatest(comments []*models.Comment) []*models.Comment {
	best := make(map[dedupKey]*models.Comment, len(comments))
	order := make([]dedupKey, 0, len(comments))
	for _, c := range comments {
		k := keyOf(c)
		cur, ok := best[k]
		if !ok {
			order = append(order, k)
			best[k] = c
			continue
		}
		if newer(c, cur) {
			best[k] = c
		}
	}
	out := make([]*models.Comment, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func newer(a, b *models.Comment) bool {
	da, db := a.EffectiveDate(), b.EffectiveDate()
	if !da.Equal(db) {
		return da.After(db)
	}
	return a.ID > b.ID
}

// SortNewestFirst orders by effective date desc, then content, then id.
func SortNewestFirst(comments []*models.Comment) {
	slices.SortFunc(comments, func(a, b *models.Comment) int {
		if c := b.EffectiveDate().Compare(a.EffectiveDate()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Content, b.Content); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
