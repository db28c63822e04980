// Package models contains data structures for the application's domain models.
package models

import "time"

// Category shards that switch a category listing to a special ranking mode.
const (
	ShardPopular = "popular"
	ShardNew     = "new"
)

// Category is a node of the marketplace catalog tree.
// Parent chains are expected to be acyclic but nothing enforces it.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Parent    *Category `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	SourceID  *int64    `gorm:"uniqueIndex" json:"source_id"`
	SlugName  string    `gorm:"type:text" json:"slug_name"`
	Shard     string    `gorm:"type:text;index" json:"shard"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
