package seed

import (
	"context"
	"strings"
	"testing"

	"reviewfeed/internal/database"
	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"
	"reviewfeed/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func newSeeder(db *gorm.DB, seed int64) *Seeder {
	ingest := service.NewIngestService(
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		repository.NewCommentRepository(db),
	)
	return NewSeeder(ingest, repository.NewUserRepository(db), seed)
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func countNodes(nodes []CategoryNode) int {
	n := len(nodes)
	for _, c := range nodes {
		n += countNodes(c.Children)
	}
	return n
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, c.Categories)

	shards := map[string]bool{}
	for _, n := range c.Categories {
		if n.Shard != "" {
			shards[n.Shard] = true
		}
	}
	assert.True(t, shards["popular"])
	assert.True(t, shards["new"])
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(`
categories:
  - source_id: 1
    title: Root
    children:
      - source_id: 2
        title: Leaf
`))
	require.NoError(t, err)
	require.Len(t, c.Categories, 1)
	assert.Equal(t, int64(2), c.Categories[0].Children[0].SourceID)

	_, err = LoadCatalog(strings.NewReader("categories: ["))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	db := setupSQLite(t)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	opts := Options{
		Products:          4,
		ReviewsPerProduct: 3,
		Users:             2,
		AdminEmail:        "admin@example.com",
		TextOnlyEvery:     4,
	}
	sum, err := newSeeder(db, 7).Run(context.Background(), catalog, opts)
	require.NoError(t, err)

	assert.Equal(t, Summary{Categories: countNodes(catalog.Categories), Products: 4, Reviews: 12, Users: 3}, sum)
	assert.EqualValues(t, sum.Categories, count(t, db, &models.Category{}))
	assert.EqualValues(t, 4, count(t, db, &models.Product{}))
	assert.EqualValues(t, 12, count(t, db, &models.Comment{}))
	assert.EqualValues(t, 3, count(t, db, &models.User{}))

	var uncategorized int64
	require.NoError(t, db.Model(&models.Product{}).Where("category_id IS NULL").Count(&uncategorized).Error)
	assert.Zero(t, uncategorized, "products land in leaf categories")

	var textOnly int64
	require.NoError(t, db.Model(&models.Comment{}).
		Where("NOT EXISTS (SELECT 1 FROM comment_files WHERE comment_files.comment_id = comments.id)").
		Count(&textOnly).Error)
	assert.EqualValues(t, 3, textOnly)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&admin).Error)
	assert.True(t, admin.IsAdmin)
}

func TestRun_SameSeedIsIdempotent(t *testing.T) {
	db := setupSQLite(t)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	opts := Options{Products: 3, ReviewsPerProduct: 2, Users: 2}

	_, err = newSeeder(db, 42).Run(context.Background(), catalog, opts)
	require.NoError(t, err)
	products, comments, users := count(t, db, &models.Product{}), count(t, db, &models.Comment{}), count(t, db, &models.User{})

	_, err = newSeeder(db, 42).Run(context.Background(), catalog, opts)
	require.NoError(t, err)
	assert.Equal(t, products, count(t, db, &models.Product{}))
	assert.Equal(t, comments, count(t, db, &models.Comment{}))
	assert.Equal(t, users, count(t, db, &models.User{}))
}

func TestRun_WithoutCatalog(t *testing.T) {
	db := setupSQLite(t)

	sum, err := newSeeder(db, 1).Run(context.Background(), nil, Options{Products: 1, ReviewsPerProduct: 1})
	require.NoError(t, err)
	assert.Zero(t, sum.Categories)
	assert.Equal(t, 1, sum.Products)
}
