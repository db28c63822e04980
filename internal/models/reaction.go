package models

import "time"

// Like represents a user's like on a product.
// The combination of UserID and ProductID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_like_user_product;index" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite is a product bookmarked by a user.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_favorite_user_product;index" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
