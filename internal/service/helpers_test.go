package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewfeed/internal/cache"
	"reviewfeed/internal/database"
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// commentRepoStub is a stub for repository.CommentRepository. Unset
// functions return zero values.
type commentRepoStub struct {
	listFeedbacksFn    func(context.Context, []uint) ([]*models.Comment, error)
	listRepliesFn      func(context.Context, *uint) ([]*models.Comment, error)
	loadReplyIndexFn   func(context.Context, []uint) (*feed.ReplyIndex, error)
	getByIDFn          func(context.Context, uint) (*models.Comment, error)
	listByUserFn       func(context.Context, uint, bool) ([]*models.Comment, error)
	countByUserFn      func(context.Context, uint, bool) (int64, error)
	createSubmissionFn func(context.Context, *models.Comment, bool) error
	updateSubmissionFn func(context.Context, *models.Comment) error
	deleteFn           func(context.Context, uint) error
	listPendingFn      func(context.Context, int, int) ([]*models.Comment, int64, error)
	resolveFn          func(context.Context, uint, models.CommentStatus, string) error
	setPromoFn         func(context.Context, uint, bool) error
	upsertFn           func(context.Context, *models.Comment) error
}

func (s *commentRepoStub) ListFeedbacks(ctx context.Context, ids []uint) ([]*models.Comment, error) {
	if s.listFeedbacksFn == nil {
		return nil, nil
	}
	return s.listFeedbacksFn(ctx, ids)
}
func (s *commentRepoStub) ListReplies(ctx context.Context, productID *uint) ([]*models.Comment, error) {
	if s.listRepliesFn == nil {
		return nil, nil
	}
	return s.listRepliesFn(ctx, productID)
}
func (s *commentRepoStub) LoadReplyIndex(ctx context.Context, ids []uint) (*feed.ReplyIndex, error) {
	if s.loadReplyIndexFn == nil {
		return feed.NewReplyIndex(nil), nil
	}
	return s.loadReplyIndexFn(ctx, ids)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	if s.getByIDFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByUser(ctx context.Context, userID uint, feedbacks bool) ([]*models.Comment, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, feedbacks)
}
func (s *commentRepoStub) CountByUser(ctx context.Context, userID uint, feedbacks bool) (int64, error) {
	if s.countByUserFn == nil {
		return 0, nil
	}
	return s.countByUserFn(ctx, userID, feedbacks)
}
func (s *commentRepoStub) CreateSubmission(ctx context.Context, c *models.Comment, moderate bool) error {
	if s.createSubmissionFn == nil {
		return nil
	}
	return s.createSubmissionFn(ctx, c, moderate)
}
func (s *commentRepoStub) UpdateSubmission(ctx context.Context, c *models.Comment) error {
	if s.updateSubmissionFn == nil {
		return nil
	}
	return s.updateSubmissionFn(ctx, c)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) ListPending(ctx context.Context, limit, offset int) ([]*models.Comment, int64, error) {
	if s.listPendingFn == nil {
		return nil, 0, nil
	}
	return s.listPendingFn(ctx, limit, offset)
}
func (s *commentRepoStub) Resolve(ctx context.Context, id uint, status models.CommentStatus, reason string) error {
	if s.resolveFn == nil {
		return nil
	}
	return s.resolveFn(ctx, id, status, reason)
}
func (s *commentRepoStub) SetPromo(ctx context.Context, id uint, promo bool) error {
	if s.setPromoFn == nil {
		return nil
	}
	return s.setPromoFn(ctx, id, promo)
}
func (s *commentRepoStub) UpsertBySourceID(ctx context.Context, c *models.Comment) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, c)
}

// productRepoStub is a stub for repository.ProductRepository.
type productRepoStub struct {
	listCandidatesFn func(context.Context, repository.ProductFilter) ([]models.Product, error)
	getCandidateFn   func(context.Context, uint) (*models.Product, error)
	findBySourceFn   func(context.Context, int64) (*models.Product, error)
	variantFn        func(context.Context, uint) (uint, error)
	existsFn         func(context.Context, uint) (bool, error)
	upsertFn         func(context.Context, *models.Product) error
	upsertVariantFn  func(context.Context, *models.ProductVariant) error
}

func (s *productRepoStub) ListCandidates(ctx context.Context, f repository.ProductFilter) ([]models.Product, error) {
	if s.listCandidatesFn == nil {
		return nil, nil
	}
	return s.listCandidatesFn(ctx, f)
}
func (s *productRepoStub) GetCandidate(ctx context.Context, id uint) (*models.Product, error) {
	if s.getCandidateFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.getCandidateFn(ctx, id)
}
func (s *productRepoStub) FindBySourceID(ctx context.Context, sourceID int64) (*models.Product, error) {
	if s.findBySourceFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findBySourceFn(ctx, sourceID)
}
func (s *productRepoStub) ProductIDForVariant(ctx context.Context, variantID uint) (uint, error) {
	if s.variantFn == nil {
		return 0, gorm.ErrRecordNotFound
	}
	return s.variantFn(ctx, variantID)
}
func (s *productRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, id)
}
func (s *productRepoStub) Upsert(ctx context.Context, p *models.Product) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, p)
}
func (s *productRepoStub) UpsertVariant(ctx context.Context, v *models.ProductVariant) error {
	if s.upsertVariantFn == nil {
		return nil
	}
	return s.upsertVariantFn(ctx, v)
}

// categoryRepoStub is a stub for repository.CategoryRepository.
type categoryRepoStub struct {
	listAllFn      func(context.Context) ([]models.Category, error)
	findBySourceFn func(context.Context, int64) (*models.Category, error)
	upsertFn       func(context.Context, *models.Category) error
}

func (s *categoryRepoStub) ListAll(ctx context.Context) ([]models.Category, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}
func (s *categoryRepoStub) GetByID(_ context.Context, _ uint) (*models.Category, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *categoryRepoStub) FindBySourceID(ctx context.Context, sourceID int64) (*models.Category, error) {
	if s.findBySourceFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findBySourceFn(ctx, sourceID)
}
func (s *categoryRepoStub) Upsert(ctx context.Context, c *models.Category) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, c)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) UpsertByEmail(_ context.Context, _ *models.User) error { return nil }

// reactionRepoStub is a stub for repository.ReactionRepository.
type reactionRepoStub struct {
	likedFn          func(context.Context, uint) ([]uint, error)
	favoriteIDsFn    func(context.Context, uint) ([]uint, error)
	toggleLikeFn     func(context.Context, uint, uint) (bool, error)
	toggleFavoriteFn func(context.Context, uint, uint) (bool, error)
	listFavoritesFn  func(context.Context, uint) ([]models.Favorite, error)
	countFavoritesFn func(context.Context, uint) (int64, error)
}

func (s *reactionRepoStub) LikedProductIDs(ctx context.Context, userID uint) ([]uint, error) {
	if s.likedFn == nil {
		return nil, nil
	}
	return s.likedFn(ctx, userID)
}
func (s *reactionRepoStub) FavoriteProductIDs(ctx context.Context, userID uint) ([]uint, error) {
	if s.favoriteIDsFn == nil {
		return nil, nil
	}
	return s.favoriteIDsFn(ctx, userID)
}
func (s *reactionRepoStub) ToggleLike(ctx context.Context, userID, productID uint) (bool, error) {
	if s.toggleLikeFn == nil {
		return true, nil
	}
	return s.toggleLikeFn(ctx, userID, productID)
}
func (s *reactionRepoStub) ToggleFavorite(ctx context.Context, userID, productID uint) (bool, error) {
	if s.toggleFavoriteFn == nil {
		return true, nil
	}
	return s.toggleFavoriteFn(ctx, userID, productID)
}
func (s *reactionRepoStub) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	if s.listFavoritesFn == nil {
		return nil, nil
	}
	return s.listFavoritesFn(ctx, userID)
}
func (s *reactionRepoStub) CountFavorites(ctx context.Context, userID uint) (int64, error) {
	if s.countFavoritesFn == nil {
		return 0, nil
	}
	return s.countFavoritesFn(ctx, userID)
}

var testSettings = Settings{
	FeedTTL:         time.Minute,
	EntityTTL:       time.Minute,
	ViewerTTL:       time.Minute,
	NewProductsDays: 7,
}

// memoryStore is a cache without Redis that keeps entries in process.
func memoryStore() *cache.Store {
	return cache.NewStore(nil, time.Minute)
}

// passthroughStore is a cache that never keeps anything.
func passthroughStore() *cache.Store {
	return cache.NewStore(nil, 0)
}

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

func uptr(v uint) *uint     { return &v }
func i64(v int64) *int64    { return &v }
func sptr(v string) *string { return &v }

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeNotFound)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}
