package cache

import (
	"fmt"
	"strings"
	"time"
)

// NewCutoffTTL is how long the "new products" cutoff date is reused.
const NewCutoffTTL = 24 * time.Hour

// Feed keys never encode the viewer or the current time; per-viewer data lives under ViewerKey.
const (
	newCutoffKey  = "feed:products:new_cutoff"
	categoriesKey = "feed:categories"
	allRepliesKey = "feed:comments:all"
)

// ProductsKey holds every displayable product in ranked order.
func ProductsKey(promo bool) string {
	return fmt.Sprintf("feed:products:promo=%t", promo)
}

// CategoryProductsKey holds the ranked products of one category listing.
func CategoryProductsKey(categoryID uint, promo bool) string {
	return fmt.Sprintf("feed:products:category=%d:promo=%t", categoryID, promo)
}

// NewCutoffKey holds the creation date from which a product counts as new.
func NewCutoffKey() string {
	return newCutoffKey
}

// CategoriesKey holds the flattened catalog tree.
func CategoriesKey() string {
	return categoriesKey
}

// ProductFeedbacksKey holds the feedback threads of one product.
func ProductFeedbacksKey(productID uint, hasFile bool) string {
	return fmt.Sprintf("feed:feedbacks:product=%d:has_file=%t", productID, hasFile)
}

// AllFeedbacksKey holds the feedback threads of every displayable product.
func AllFeedbacksKey(promo, hasFile bool) string {
	return fmt.Sprintf("feed:feedbacks:all:promo=%t:has_file=%t", promo, hasFile)
}

// FeedbackRepliesKey holds the replies under one feedback.
func FeedbackRepliesKey(feedbackID uint) string {
	return fmt.Sprintf("feed:comments:feedback=%d", feedbackID)
}

// ProductRepliesKey holds the replies attached to one product.
func ProductRepliesKey(productID uint) string {
	return fmt.Sprintf("feed:comments:product=%d", productID)
}

// AllRepliesKey holds every visible reply.
func AllRepliesKey() string {
	return allRepliesKey
}

// ViewerKey holds the like and favorite sets of one user.
func ViewerKey(userID uint) string {
	return fmt.Sprintf("viewer:%d:reactions", userID)
}

// viewOf reduces a key to a low-cardinality metric label.
func viewOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if parts[0] == "feed" && len(parts) > 1 {
		name, _, _ := strings.Cut(parts[1], "=")
		return "feed:" + name
	}
	return parts[0]
}
