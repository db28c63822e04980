package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// CategoryInput is a scraped catalog node.
type CategoryInput struct {
	SourceID       int64
	ParentSourceID *int64
	Title          string
	SlugName       string
	Shard          string
	Position       int
}

// VariantInput is a scraped product variant.
type VariantInput struct {
	SourceID int64
	Color    string
	Price    string
	Images   []FileInput
}

// ProductInput is a scraped product.
type ProductInput struct {
	SourceID         int64
	CategorySourceID *int64
	Title            string
	Root             *int64
	Variants         []VariantInput
}

// ReviewInput is a scraped marketplace review.
type ReviewInput struct {
	SourceID        int64
	ProductSourceID int64
	WbUser          string
	Content         string
	Rating          int
	SourceDate      *time.Time
	Files           []FileInput
}

// IngestService writes scraped marketplace data. Every upsert is keyed by the
// marketplace source id, so replaying a scrape is harmless.
type IngestService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	comments   repository.CommentRepository
	sanitizer  *bluemonday.Policy
}

// NewIngestService creates an IngestService.
func NewIngestService(
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	comments repository.CommentRepository,
) *IngestService {
	return &IngestService{
		categories: categories,
		products:   products,
		comments:   comments,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// UpsertCategory stores a category under its parent. The slug defaults to the
// transliterated title.
func (s *IngestService) UpsertCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("category title is required")
	}
	category := &models.Category{
		Title:    title,
		SourceID: &in.SourceID,
		SlugName: in.SlugName,
		Shard:    in.Shard,
		Position: in.Position,
	}
	if category.SlugName == "" {
		category.SlugName = slug.Make(title)
	}
	if in.ParentSourceID != nil {
		parent, err := s.categories.FindBySourceID(ctx, *in.ParentSourceID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent category %d: %w", *in.ParentSourceID, err)
		}
		category.ParentID = &parent.ID
	}
	if err := s.categories.Upsert(ctx, category); err != nil {
		return nil, fmt.Errorf("upsert category %d: %w", in.SourceID, err)
	}
	return category, nil
}

// UpsertProduct stores a product with its variants. An unknown category
// leaves the product uncategorized.
func (s *IngestService) UpsertProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	product := &models.Product{SourceID: &in.SourceID, Root: in.Root}
	if title := strings.TrimSpace(in.Title); title != "" {
		product.Title = &title
	}
	if in.CategorySourceID != nil {
		category, err := s.categories.FindBySourceID(ctx, *in.CategorySourceID)
		switch {
		case err == nil:
			product.CategoryID = &category.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("resolve category %d: %w", *in.CategorySourceID, err)
		}
	}
	if err := s.products.Upsert(ctx, product); err != nil {
		return nil, fmt.Errorf("upsert product %d: %w", in.SourceID, err)
	}

	for _, v := range in.Variants {
		variant := &models.ProductVariant{
			ProductID: product.ID,
			SourceID:  &v.SourceID,
			Color:     v.Color,
			Price:     v.Price,
		}
		for _, img := range v.Images {
			variant.Images = append(variant.Images, models.ProductVariantImage{ImageLink: img.Link, FileType: fileTypeOr(img.Type)})
		}
		if err := s.products.UpsertVariant(ctx, variant); err != nil {
			return nil, fmt.Errorf("upsert variant %d: %w", v.SourceID, err)
		}
		product.Variants = append(product.Variants, *variant)
	}
	return product, nil
}

// UpsertComment stores a marketplace review. Reviews are already public on
// the marketplace, so they arrive accepted. A review of an unknown product
// keeps the product's source id for later linking.
func (s *IngestService) UpsertComment(ctx context.Context, in ReviewInput) (*models.Comment, error) {
	comment := &models.Comment{
		SourceID:   &in.SourceID,
		Content:    strings.TrimSpace(s.sanitizer.Sanitize(in.Content)),
		Rating:     min(max(in.Rating, 0), maxRating),
		Status:     models.StatusAccepted,
		WbUser:     strings.TrimSpace(in.WbUser),
		SourceDate: in.SourceDate,
	}

	product, err := s.products.FindBySourceID(ctx, in.ProductSourceID)
	switch {
	case err == nil:
		comment.ProductID = &product.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		comment.ProductSourceID = &in.ProductSourceID
	default:
		return nil, fmt.Errorf("resolve product %d: %w", in.ProductSourceID, err)
	}

	for i, f := range in.Files {
		comment.Files = append(comment.Files, models.CommentFile{FileLink: f.Link, FileType: fileTypeOr(f.Type), Position: i})
	}
	if err := s.comments.UpsertBySourceID(ctx, comment); err != nil {
		return nil, fmt.Errorf("upsert review %d: %w", in.SourceID, err)
	}
	return comment, nil
}

func fileTypeOr(t models.FileType) models.FileType {
	if t == "" {
		return models.FileTypeImage
	}
	return t
}
