// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"strings"
	"time"

	"reviewfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const likesCountSubquery = "(SELECT COUNT(*) FROM likes WHERE likes.product_id = products.id)"

// ProductFilter narrows the candidate set of a product listing.
type ProductFilter struct {
	CategoryIDs []uint
	SourceID    *int64
	Search      string
	// MoreLikesThan keeps products with strictly more likes when positive.
	MoreLikesThan int
	CreatedSince  *time.Time
}

// ProductRepository defines interface for product operations
type ProductRepository interface {
	ListCandidates(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetCandidate(ctx context.Context, id uint) (*models.Product, error)
	FindBySourceID(ctx context.Context, sourceID int64) (*models.Product, error)
	ProductIDForVariant(ctx context.Context, variantID uint) (uint, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Upsert(ctx context.Context, product *models.Product) error
	UpsertVariant(ctx context.Context, variant *models.ProductVariant) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func orderedFiles(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, id asc")
}

// withFeedDetails loads what eligibility and snapshotting need: accepted
// comments with their files and moderation state, variant images and the like count.
func withFeedDetails(db *gorm.DB) *gorm.DB {
	return db.
		Select("products.*, "+likesCountSubquery+" AS likes_count").
		Preload("Comments", "status = ?", models.StatusAccepted).
		Preload("Comments.Files", orderedFiles).
		Preload("Comments.Moderation").
		Preload("Variants.Images")
}

func (r *productRepository) ListCandidates(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	q := withFeedDetails(r.db.WithContext(ctx).Model(&models.Product{}))

	if filter.CategoryIDs != nil {
		q = q.Where("products.category_id IN ?", filter.CategoryIDs)
	}
	if filter.SourceID != nil {
		q = q.Where("products.source_id = ?", *filter.SourceID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(products.title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if filter.MoreLikesThan > 0 {
		q = q.Where(likesCountSubquery+" > ?", filter.MoreLikesThan)
	}
	if filter.CreatedSince != nil {
		q = q.Where("products.created_at >= ?", *filter.CreatedSince)
	}

	var products []models.Product
	err := q.Order("products.id asc").Find(&products).Error
	return products, err
}

func (r *productRepository) GetCandidate(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := withFeedDetails(r.db.WithContext(ctx).Model(&models.Product{})).
		Where("products.id = ?", id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindBySourceID(ctx context.Context, sourceID int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ProductIDForVariant(ctx context.Context, variantID uint) (uint, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Select("product_id").First(&variant, variantID).Error; err != nil {
		return 0, err
	}
	return variant.ProductID, nil
}

func (r *productRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *productRepository) Upsert(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "category_id", "root", "updated_at"}),
		}).
		Create(product).Error
}

func (r *productRepository) UpsertVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"product_id", "color", "price", "updated_at"}),
			}).
			Create(variant).Error; err != nil {
			return err
		}
		if len(variant.Images) == 0 {
			return nil
		}
		if err := tx.Where("variant_id = ?", variant.ID).Delete(&models.ProductVariantImage{}).Error; err != nil {
			return err
		}
		for i := range variant.Images {
			variant.Images[i].ID = 0
			variant.Images[i].VariantID = variant.ID
		}
		return tx.Create(&variant.Images).Error
	})
}
