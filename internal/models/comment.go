package models

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	StatusAccepted    CommentStatus = "accepted"
	StatusNotAccepted CommentStatus = "not_accepted"
	StatusNotReviewed CommentStatus = "not_reviewed"
)

// Comment is either a top-level feedback (ReplyToID == nil) or a reply to one.
// Authorship comes from exactly one of UserID or WbUser.
type Comment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	ProductID       *uint         `gorm:"index" json:"product_id"`
	Product         *Product      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
	ProductSourceID *int64        `json:"product_source_id,omitempty"`
	SourceID        *int64        `gorm:"uniqueIndex" json:"source_id"`
	Content         string        `gorm:"type:text" json:"content"`
	Rating          int           `gorm:"not null;default:0" json:"rating"`
	Status          CommentStatus `gorm:"type:varchar(20);not null;default:not_reviewed;index" json:"status"`
	UserID          *uint         `gorm:"index" json:"user_id"`
	User            *User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	WbUser          string        `gorm:"type:text" json:"wb_user"`
	ReplyToID       *uint         `gorm:"index" json:"reply_to"`
	SourceDate      *time.Time    `json:"source_date"`
	Reason          string        `gorm:"type:text" json:"reason,omitempty"`
	Promo           bool          `gorm:"not null;default:false" json:"promo"`

	// Files are ordered by Position; position 0 is the primary attachment.
	Files      []CommentFile      `gorm:"foreignKey:CommentID" json:"files,omitempty"`
	Moderation *ModerationRequest `gorm:"foreignKey:CommentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFeedback reports whether the comment is a top-level review.
func (c *Comment) IsFeedback() bool {
	return c.ReplyToID == nil
}

// IsPending reports whether the comment still waits for moderation.
func (c *Comment) IsPending() bool {
	return c.Moderation != nil
}

// EffectiveDate is the external publish date when known, else the creation time.
func (c *Comment) EffectiveDate() time.Time {
	if c.SourceDate != nil {
		return *c.SourceDate
	}
	return c.CreatedAt
}

// CommentFile is a media attachment of a comment.
type CommentFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;index" json:"comment_id"`
	FileLink  string    `gorm:"type:text;not null" json:"file_link"`
	FileType  FileType  `gorm:"type:varchar(20);not null;default:image" json:"file_type"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ModerationRequest marks a comment as waiting for review. It is keyed by the
// comment id and holds a snapshot of what the author submitted.
type ModerationRequest struct {
	CommentID   uint      `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	Comment     *Comment  `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"comment,omitempty"`
	Content     string    `gorm:"type:text" json:"content"`
	Rating      int       `json:"rating"`
	SubmittedAt time.Time `json:"submitted_at"`
}
