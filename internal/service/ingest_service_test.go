package service

import (
	"context"
	"errors"
	"testing"

	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestService_UpsertCategory(t *testing.T) {
	t.Parallel()

	var stored *models.Category
	categories := &categoryRepoStub{
		findBySourceFn: func(_ context.Context, sourceID int64) (*models.Category, error) {
			assert.Equal(t, int64(100), sourceID)
			return &models.Category{ID: 3}, nil
		},
		upsertFn: func(_ context.Context, c *models.Category) error {
			c.ID = 9
			stored = c
			return nil
		},
	}
	svc := NewIngestService(categories, &productRepoStub{}, &commentRepoStub{})

	category, err := svc.UpsertCategory(context.Background(), CategoryInput{
		SourceID:       200,
		ParentSourceID: i64(100),
		Title:          "  Women Shoes ",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(9), category.ID)
	assert.Equal(t, "Women Shoes", stored.Title)
	assert.Equal(t, "women-shoes", stored.SlugName)
	require.NotNil(t, stored.ParentID)
	assert.Equal(t, uint(3), *stored.ParentID)

	_, err = svc.UpsertCategory(context.Background(), CategoryInput{SourceID: 1, Title: "  "})
	assertValidationError(t, err)
}

func TestIngestService_UpsertCategory_KeepsGivenSlug(t *testing.T) {
	t.Parallel()

	var stored *models.Category
	categories := &categoryRepoStub{upsertFn: func(_ context.Context, c *models.Category) error {
		stored = c
		return nil
	}}
	svc := NewIngestService(categories, &productRepoStub{}, &commentRepoStub{})

	_, err := svc.UpsertCategory(context.Background(), CategoryInput{SourceID: 1, Title: "Popular", SlugName: "top", Shard: models.ShardPopular})
	require.NoError(t, err)
	assert.Equal(t, "top", stored.SlugName)
	assert.Equal(t, models.ShardPopular, stored.Shard)
	assert.Nil(t, stored.ParentID)
}

func TestIngestService_UpsertProduct(t *testing.T) {
	t.Parallel()

	var variants []*models.ProductVariant
	products := &productRepoStub{
		upsertFn: func(_ context.Context, p *models.Product) error {
			assert.Nil(t, p.CategoryID, "unknown category leaves the product uncategorized")
			p.ID = 11
			return nil
		},
		upsertVariantFn: func(_ context.Context, v *models.ProductVariant) error {
			variants = append(variants, v)
			return nil
		},
	}
	svc := NewIngestService(&categoryRepoStub{}, products, &commentRepoStub{})

	product, err := svc.UpsertProduct(context.Background(), ProductInput{
		SourceID:         500,
		CategorySourceID: i64(42),
		Title:            "Red Sneakers",
		Variants: []VariantInput{{
			SourceID: 501,
			Color:    "red",
			Images:   []FileInput{{Link: "/a.jpg"}, {Link: "/b.mp4", Type: models.FileTypeVideo}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(11), product.ID)
	assert.Equal(t, "Red Sneakers", product.DisplayTitle())
	require.Len(t, variants, 1)
	assert.Equal(t, uint(11), variants[0].ProductID)
	require.Len(t, variants[0].Images, 2)
	assert.Equal(t, models.FileTypeImage, variants[0].Images[0].FileType)
	assert.Equal(t, models.FileTypeVideo, variants[0].Images[1].FileType)
	assert.Len(t, product.Variants, 1)
}

func TestIngestService_UpsertProduct_CategoryLookupFails(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("db down")
	categories := &categoryRepoStub{findBySourceFn: func(context.Context, int64) (*models.Category, error) {
		return nil, repoErr
	}}
	svc := NewIngestService(categories, &productRepoStub{}, &commentRepoStub{})

	_, err := svc.UpsertProduct(context.Background(), ProductInput{SourceID: 1, CategorySourceID: i64(2)})
	assert.ErrorIs(t, err, repoErr)
}

func TestIngestService_UpsertComment(t *testing.T) {
	t.Parallel()

	t.Run("known product", func(t *testing.T) {
		t.Parallel()
		var stored *models.Comment
		products := &productRepoStub{findBySourceFn: func(context.Context, int64) (*models.Product, error) {
			return &models.Product{ID: 4}, nil
		}}
		comments := &commentRepoStub{upsertFn: func(_ context.Context, c *models.Comment) error {
			stored = c
			return nil
		}}
		svc := NewIngestService(&categoryRepoStub{}, products, comments)

		_, err := svc.UpsertComment(context.Background(), ReviewInput{
			SourceID:        77,
			ProductSourceID: 500,
			WbUser:          " Anna ",
			Content:         "<b>Great</b> shoes",
			Rating:          9,
			Files:           []FileInput{{Link: "/x.jpg"}},
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, stored.Status)
		assert.Equal(t, "Great shoes", stored.Content)
		assert.Equal(t, 5, stored.Rating)
		assert.Equal(t, "Anna", stored.WbUser)
		require.NotNil(t, stored.ProductID)
		assert.Equal(t, uint(4), *stored.ProductID)
		assert.Nil(t, stored.ProductSourceID)
		require.Len(t, stored.Files, 1)
		assert.Equal(t, models.FileTypeImage, stored.Files[0].FileType)
	})

	t.Run("unknown product keeps its source id", func(t *testing.T) {
		t.Parallel()
		var stored *models.Comment
		comments := &commentRepoStub{upsertFn: func(_ context.Context, c *models.Comment) error {
			stored = c
			return nil
		}}
		svc := NewIngestService(&categoryRepoStub{}, &productRepoStub{}, comments)

		_, err := svc.UpsertComment(context.Background(), ReviewInput{SourceID: 78, ProductSourceID: 999, Content: "ok"})
		require.NoError(t, err)
		assert.Nil(t, stored.ProductID)
		require.NotNil(t, stored.ProductSourceID)
		assert.Equal(t, int64(999), *stored.ProductSourceID)
	})
}

func TestIngestService_ReplayIsIdempotent(t *testing.T) {
	db := setupSQLite(t)
	svc := NewIngestService(
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		repository.NewCommentRepository(db),
	)
	ctx := context.Background()

	for range 2 {
		_, err := svc.UpsertCategory(ctx, CategoryInput{SourceID: 1, Title: "Shoes"})
		require.NoError(t, err)
		_, err = svc.UpsertProduct(ctx, ProductInput{SourceID: 10, CategorySourceID: i64(1), Title: "Red Sneakers",
			Variants: []VariantInput{{SourceID: 11, Images: []FileInput{{Link: "/v.jpg"}}}}})
		require.NoError(t, err)
		_, err = svc.UpsertComment(ctx, ReviewInput{SourceID: 100, ProductSourceID: 10, Content: "Great", Files: []FileInput{{Link: "/c.jpg"}}})
		require.NoError(t, err)
	}

	var categories, products, variants, images, comments, files int64
	require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&models.ProductVariant{}).Count(&variants).Error)
	require.NoError(t, db.Model(&models.ProductVariantImage{}).Count(&images).Error)
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, db.Model(&models.CommentFile{}).Count(&files).Error)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1}, []int64{categories, products, variants, images, comments, files})

	var product models.Product
	require.NoError(t, db.Where("source_id = ?", 10).First(&product).Error)
	require.NotNil(t, product.CategoryID)
}
