// Package feed holds the pure parts of the review feed: which products and
// comments may be shown, how listings are ranked, how reply threads are
// assembled and how records are projected into API views. Nothing here talks
// to the database or the cache.
package feed

import (
	"strings"

	"reviewfeed/internal/models"
)

// Policy tunes product eligibility.
type Policy struct {
	// RequireVariantImages additionally demands at least one image on every variant.
	RequireVariantImages bool
}

// IsValidComment reports whether a comment can make its product displayable:
// accepted, with non-blank content, at least one image attachment and no
// pending moderation request.
func IsValidComment(c *models.Comment) bool {
	if !visible(c) {
		return false
	}
	for i := range c.Files {
		if c.Files[i].FileType == models.FileTypeImage {
			return true
		}
	}
	return false
}

// IsFeedComment reports whether a feedback belongs in the feedback feed.
// requireMedia demands at least one attachment of any type.
func IsFeedComment(c *models.Comment, requireMedia bool) bool {
	if !visible(c) {
		return false
	}
	return !requireMedia || len(c.Files) > 0
}

// IsVisibleReply reports whether a reply may appear inside a thread.
func IsVisibleReply(c *models.Comment) bool {
	return c.Status == models.StatusAccepted && !c.IsPending()
}

func visible(c *models.Comment) bool {
	return c != nil &&
		c.Status == models.StatusAccepted &&
		!c.IsPending() &&
		strings.TrimSpace(c.Content) != ""
}

// IsDisplayable reports whether one product passes the policy. Comments and
// variant images must be preloaded.
func IsDisplayable(p *models.Product, policy Policy) bool {
	if policy.RequireVariantImages {
		for i := range p.Variants {
			if len(p.Variants[i].Images) == 0 {
				return false
			}
		}
	}
	for i := range p.Comments {
		if IsValidComment(&p.Comments[i]) {
			return true
		}
	}
	return false
}

// EligibleProducts returns the ids of the displayable products.
func EligibleProducts(products []models.Product, policy Policy) map[uint]struct{} {
	ids := make(map[uint]struct{}, len(products))
	for i := range products {
		if IsDisplayable(&products[i], policy) {
			ids[products[i].ID] = struct{}{}
		}
	}
	return ids
}
