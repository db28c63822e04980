package service

import (
	"context"
	"errors"
	"testing"

	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestModerationService_IsAdmin(t *testing.T) {
	t.Parallel()

	users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
		switch id {
		case 1:
			return &models.User{ID: 1, IsAdmin: true}, nil
		case 2:
			return &models.User{ID: 2}, nil
		case 3:
			return nil, errors.New("db down")
		}
		return nil, gorm.ErrRecordNotFound
	}}
	svc := NewModerationService(&commentRepoStub{}, users)
	ctx := context.Background()

	admin, err := svc.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = svc.IsAdmin(ctx, 2)
	require.NoError(t, err)
	assert.False(t, admin)

	admin, err = svc.IsAdmin(ctx, 0)
	require.NoError(t, err)
	assert.False(t, admin, "anonymous is never admin")

	admin, err = svc.IsAdmin(ctx, 99)
	require.NoError(t, err)
	assert.False(t, admin, "unknown user is not admin")

	_, err = svc.IsAdmin(ctx, 3)
	assert.Error(t, err)
}

func TestModerationService_ListPending(t *testing.T) {
	t.Parallel()

	comments := &commentRepoStub{listPendingFn: func(_ context.Context, limit, offset int) ([]*models.Comment, int64, error) {
		assert.Equal(t, 10, limit)
		assert.Equal(t, 20, offset)
		return []*models.Comment{
			{ID: 5, Content: "first", Status: models.StatusNotReviewed},
			{ID: 6, Content: "second", Status: models.StatusNotReviewed},
		}, 22, nil
	}}
	svc := NewModerationService(comments, &userRepoStub{})

	records, total, err := svc.ListPending(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(22), total)
	require.Len(t, records, 2)
	assert.Equal(t, uint(5), records[0].ID)
	assert.Equal(t, "second", records[1].Content)
}

func TestModerationService_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("accept publishes", func(t *testing.T) {
		t.Parallel()
		var gotStatus models.CommentStatus
		comments := &commentRepoStub{resolveFn: func(_ context.Context, id uint, status models.CommentStatus, reason string) error {
			assert.Equal(t, uint(7), id)
			assert.Empty(t, reason)
			gotStatus = status
			return nil
		}}
		svc := NewModerationService(comments, &userRepoStub{})
		require.NoError(t, svc.Accept(context.Background(), 7))
		assert.Equal(t, models.StatusAccepted, gotStatus)
	})

	t.Run("reject keeps the reason", func(t *testing.T) {
		t.Parallel()
		var gotReason string
		comments := &commentRepoStub{resolveFn: func(_ context.Context, _ uint, status models.CommentStatus, reason string) error {
			assert.Equal(t, models.StatusNotAccepted, status)
			gotReason = reason
			return nil
		}}
		svc := NewModerationService(comments, &userRepoStub{})
		require.NoError(t, svc.Reject(context.Background(), 7, "spam"))
		assert.Equal(t, "spam", gotReason)
	})

	t.Run("not pending is a validation error", func(t *testing.T) {
		t.Parallel()
		comments := &commentRepoStub{resolveFn: func(context.Context, uint, models.CommentStatus, string) error {
			return repository.ErrNotPending
		}}
		svc := NewModerationService(comments, &userRepoStub{})
		assertValidationError(t, svc.Accept(context.Background(), 7))
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		t.Parallel()
		repoErr := errors.New("db down")
		comments := &commentRepoStub{resolveFn: func(context.Context, uint, models.CommentStatus, string) error {
			return repoErr
		}}
		svc := NewModerationService(comments, &userRepoStub{})
		assert.ErrorIs(t, svc.Reject(context.Background(), 7, "x"), repoErr)
	})
}

func TestModerationService_SetPromo(t *testing.T) {
	t.Parallel()

	comments := &commentRepoStub{setPromoFn: func(_ context.Context, id uint, promo bool) error {
		if id != 1 {
			return gorm.ErrRecordNotFound
		}
		assert.True(t, promo)
		return nil
	}}
	svc := NewModerationService(comments, &userRepoStub{})

	require.NoError(t, svc.SetPromo(context.Background(), 1, true))
	assertNotFoundError(t, svc.SetPromo(context.Background(), 2, true))
}
