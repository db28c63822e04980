package repository

import (
	"context"

	"reviewfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository defines interface for likes and favorites
type ReactionRepository interface {
	LikedProductIDs(ctx context.Context, userID uint) ([]uint, error)
	FavoriteProductIDs(ctx context.Context, userID uint) ([]uint, error)
	ToggleLike(ctx context.Context, userID, productID uint) (bool, error)
	ToggleFavorite(ctx context.Context, userID, productID uint) (bool, error)
	ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error)
	CountFavorites(ctx context.Context, userID uint) (int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new ReactionRepository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) LikedProductIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).Where("user_id = ?", userID).Pluck("product_id", &ids).Error
	return ids, err
}

func (r *reactionRepository) FavoriteProductIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID).Pluck("product_id", &ids).Error
	return ids, err
}

// toggle removes the pair when present and inserts it otherwise. It reports
// whether the pair exists afterwards.
func toggle[T any](ctx context.Context, db *gorm.DB, row *T, userID, productID uint) (bool, error) {
	var on bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		on = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
	return on, err
}

func (r *reactionRepository) ToggleLike(ctx context.Context, userID, productID uint) (bool, error) {
	return toggle(ctx, r.db, &models.Like{UserID: userID, ProductID: productID}, userID, productID)
}

func (r *reactionRepository) ToggleFavorite(ctx context.Context, userID, productID uint) (bool, error) {
	return toggle(ctx, r.db, &models.Favorite{UserID: userID, ProductID: productID}, userID, productID)
}

func (r *reactionRepository) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&favorites).Error
	return favorites, err
}

func (r *reactionRepository) CountFavorites(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
