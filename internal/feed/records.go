package feed

import (
	"strings"
	"time"

	"reviewfeed/internal/models"
)

// FileRecord is a stored media link.
type FileRecord struct {
	Link string          `json:"link"`
	Type models.FileType `json:"type"`
}

// ProductRecord is the cached snapshot of a displayable product.
type ProductRecord struct {
	ID         uint        `json:"id"`
	Title      string      `json:"title"`
	CategoryID *uint       `json:"category_id"`
	SourceID   *int64      `json:"source_id"`
	Image      *FileRecord `json:"image"`
	Likes      int         `json:"likes"`
	Promoted   bool        `json:"promoted"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CommentRecord is the cached snapshot of a comment, optionally with its
// flattened reply thread.
type CommentRecord struct {
	ID            uint                 `json:"id"`
	ProductID     *uint                `json:"product_id"`
	ProductTitle  string               `json:"product_title,omitempty"`
	ProductImage  *FileRecord          `json:"product_image,omitempty"`
	SourceID      *int64               `json:"source_id"`
	Content       string               `json:"content"`
	Rating        int                  `json:"rating"`
	Status        models.CommentStatus `json:"status"`
	Reason        string               `json:"reason,omitempty"`
	UserID        *uint                `json:"user_id"`
	WbUser        string               `json:"wb_user"`
	UserFullName  string               `json:"user_full_name,omitempty"`
	UserEmail     string               `json:"user_email,omitempty"`
	Files         []FileRecord         `json:"files"`
	ReplyTo       *uint                `json:"reply_to"`
	Promo         bool                 `json:"promo"`
	EffectiveDate time.Time            `json:"effective_date"`
	Replies       []CommentRecord      `json:"replies,omitempty"`
}

// FileType is the type of the primary attachment, or empty.
func (r *CommentRecord) FileType() models.FileType {
	if len(r.Files) == 0 {
		return ""
	}
	return r.Files[0].Type
}

// IsStream reports whether a link points at an HLS playlist.
func IsStream(link string) bool {
	return strings.HasSuffix(strings.ToLower(link), ".m3u8")
}

// NewProductRecord snapshots a product with preloaded comments and files.
// Without a stored image the first still image of a valid comment is used.
func NewProductRecord(p *models.Product) ProductRecord {
	rec := ProductRecord{
		ID:         p.ID,
		Title:      p.DisplayTitle(),
		CategoryID: p.CategoryID,
		SourceID:   p.SourceID,
		Likes:      p.LikesCount,
		CreatedAt:  p.CreatedAt,
	}
	if p.ImageLink != "" {
		rec.Image = &FileRecord{Link: p.ImageLink, Type: models.FileTypeImage}
	}
	for i := range p.Comments {
		c := &p.Comments[i]
		if !IsValidComment(c) {
			continue
		}
		if c.Promo {
			rec.Promoted = true
		}
		if rec.Image == nil {
			rec.Image = firstStill(c.Files)
		}
	}
	return rec
}

func firstStill(files []models.CommentFile) *FileRecord {
	for _, f := range files {
		if f.FileType == models.FileTypeImage && !IsStream(f.FileLink) {
			return &FileRecord{Link: f.FileLink, Type: f.FileType}
		}
	}
	return nil
}

// NewCommentRecord snapshots a comment. User and Product are used when preloaded.
func NewCommentRecord(c *models.Comment) CommentRecord {
	rec := CommentRecord{
		ID:            c.ID,
		ProductID:     c.ProductID,
		SourceID:      c.SourceID,
		Content:       c.Content,
		Rating:        c.Rating,
		Status:        c.Status,
		Reason:        c.Reason,
		UserID:        c.UserID,
		WbUser:        c.WbUser,
		ReplyTo:       c.ReplyToID,
		Promo:         c.Promo,
		EffectiveDate: c.EffectiveDate(),
		Files:         make([]FileRecord, 0, len(c.Files)),
	}
	for _, f := range c.Files {
		rec.Files = append(rec.Files, FileRecord{Link: f.FileLink, Type: f.FileType})
	}
	if c.User != nil {
		rec.UserFullName = c.User.FullName
		rec.UserEmail = c.User.Email
	}
	if c.Product != nil {
		rec.ProductTitle = c.Product.DisplayTitle()
		if c.Product.ImageLink != "" {
			rec.ProductImage = &FileRecord{Link: c.Product.ImageLink, Type: models.FileTypeImage}
		}
	}
	return rec
}

// NewThreadRecord snapshots a comment together with its collected replies.
func NewThreadRecord(c *models.Comment, ix *ReplyIndex) CommentRecord {
	rec := NewCommentRecord(c)
	for _, r := range CollectReplies(c.ID, ix, true) {
		rec.Replies = append(rec.Replies, NewCommentRecord(r))
	}
	return rec
}
