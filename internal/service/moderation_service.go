package service

import (
	"context"
	"errors"
	"fmt"

	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/observability"
	"reviewfeed/internal/repository"

	"gorm.io/gorm"
)

// ModerationService reviews user submissions. Decisions reach the public feed
// when the affected cache entries expire.
type ModerationService struct {
	comments repository.CommentRepository
	users    repository.UserRepository
}

// NewModerationService creates a ModerationService.
func NewModerationService(comments repository.CommentRepository, users repository.UserRepository) *ModerationService {
	return &ModerationService{comments: comments, users: users}
}

// IsAdmin reports whether the user may moderate. Unknown users are not admins.
func (s *ModerationService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.IsAdmin, nil
}

// ListPending returns one page of comments waiting for review, oldest first.
func (s *ModerationService) ListPending(ctx context.Context, limit, offset int) ([]feed.CommentRecord, int64, error) {
	comments, total, err := s.comments.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending comments: %w", err)
	}
	records := make([]feed.CommentRecord, 0, len(comments))
	for _, c := range comments {
		records = append(records, feed.NewCommentRecord(c))
	}
	return records, total, nil
}

// Accept publishes a pending comment.
func (s *ModerationService) Accept(ctx context.Context, commentID uint) error {
	return s.resolve(ctx, commentID, models.StatusAccepted, "")
}

// Reject hides a pending comment and records why.
func (s *ModerationService) Reject(ctx context.Context, commentID uint, reason string) error {
	return s.resolve(ctx, commentID, models.StatusNotAccepted, reason)
}

func (s *ModerationService) resolve(ctx context.Context, commentID uint, status models.CommentStatus, reason string) error {
	err := s.comments.Resolve(ctx, commentID, status, reason)
	if errors.Is(err, repository.ErrNotPending) {
		return models.NewValidationError(models.MsgNotPending)
	}
	if err != nil {
		return fmt.Errorf("resolve comment %d: %w", commentID, err)
	}
	observability.Logger.InfoContext(ctx, "comment moderated",
		"comment_id", commentID,
		"status", string(status),
	)
	return nil
}

// SetPromo marks or unmarks a comment as promoted.
func (s *ModerationService) SetPromo(ctx context.Context, commentID uint, promo bool) error {
	err := s.comments.SetPromo(ctx, commentID, promo)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(models.MsgCommentNotFound)
	}
	if err != nil {
		return fmt.Errorf("set promo on comment %d: %w", commentID, err)
	}
	return nil
}
