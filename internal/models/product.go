package models

import (
	"time"

	"gorm.io/gorm"
)

// FileType classifies a media attachment.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// Product is a marketplace item. Variants of the same item share Root.
type Product struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      *string   `gorm:"type:text;uniqueIndex" json:"title"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Root       *int64    `gorm:"index" json:"root"`
	SourceID   *int64    `gorm:"uniqueIndex" json:"source_id"`
	ImageLink  string    `gorm:"type:text" json:"image_link"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	Comments []Comment        `gorm:"foreignKey:ProductID" json:"-"`

	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayTitle returns the title or an empty string for untitled products.
func (p *Product) DisplayTitle() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// ProductVariant is a color/size variant. Its SourceID is the article number shown to shoppers.
type ProductVariant struct {
	ID        uint                  `gorm:"primaryKey" json:"id"`
	ProductID uint                  `gorm:"not null;index" json:"product_id"`
	Color     string                `gorm:"type:text" json:"color"`
	Price     string                `gorm:"type:text" json:"price"`
	SourceID  *int64                `gorm:"uniqueIndex" json:"source_id"`
	Images    []ProductVariantImage `gorm:"foreignKey:VariantID" json:"images,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ProductVariantImage is a media file of a variant.
type ProductVariantImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VariantID uint      `gorm:"not null;index" json:"variant_id"`
	ImageLink string    `gorm:"type:text;not null" json:"image_link"`
	FileType  FileType  `gorm:"type:varchar(20);not null;default:image" json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}
