package repository

import (
	"context"
	"errors"
	"time"

	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotPending is returned when moderating a comment without a pending request.
var ErrNotPending = errors.New("comment is not pending moderation")

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	ListFeedbacks(ctx context.Context, productIDs []uint) ([]*models.Comment, error)
	ListReplies(ctx context.Context, productID *uint) ([]*models.Comment, error)
	LoadReplyIndex(ctx context.Context, rootIDs []uint) (*feed.ReplyIndex, error)
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByUser(ctx context.Context, userID uint, feedbacks bool) ([]*models.Comment, error)
	CountByUser(ctx context.Context, userID uint, feedbacks bool) (int64, error)
	CreateSubmission(ctx context.Context, comment *models.Comment, moderate bool) error
	UpdateSubmission(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
	ListPending(ctx context.Context, limit, offset int) ([]*models.Comment, int64, error)
	Resolve(ctx context.Context, id uint, status models.CommentStatus, reason string) error
	SetPromo(ctx context.Context, id uint, promo bool) error
	UpsertBySourceID(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func withCommentDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Files", orderedFiles).
		Preload("Moderation").
		Preload("User")
}

func (r *commentRepository) ListFeedbacks(ctx context.Context, productIDs []uint) ([]*models.Comment, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var comments []*models.Comment
	err := withCommentDetails(r.db.WithContext(ctx)).
		Where("reply_to_id IS NULL AND status = ?", models.StatusAccepted).
		Where("product_id IN ?", productIDs).
		Order("id asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListReplies(ctx context.Context, productID *uint) ([]*models.Comment, error) {
	q := withCommentDetails(r.db.WithContext(ctx)).
		Where("reply_to_id IS NOT NULL AND status = ?", models.StatusAccepted)
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	var comments []*models.Comment
	err := q.Order("id asc").Find(&comments).Error
	return comments, err
}

// LoadReplyIndex fetches every accepted reply below rootIDs one level at a
// time. A reply seen twice is not expanded again.
func (r *commentRepository) LoadReplyIndex(ctx context.Context, rootIDs []uint) (*feed.ReplyIndex, error) {
	ix := feed.NewReplyIndex(nil)
	seen := make(map[uint]struct{}, len(rootIDs))
	for _, id := range rootIDs {
		seen[id] = struct{}{}
	}

	frontier := rootIDs
	for len(frontier) > 0 {
		var level []*models.Comment
		if err := withCommentDetails(r.db.WithContext(ctx)).
			Where("reply_to_id IN ? AND status = ?", frontier, models.StatusAccepted).
			Order("id asc").
			Find(&level).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0:0]
		for _, c := range level {
			ix.Add(c)
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			frontier = append(frontier, c.ID)
		}
	}
	return ix, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := withCommentDetails(r.db.WithContext(ctx)).Preload("Product").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func byKind(db *gorm.DB, feedbacks bool) *gorm.DB {
	if feedbacks {
		return db.Where("reply_to_id IS NULL")
	}
	return db.Where("reply_to_id IS NOT NULL")
}

func (r *commentRepository) ListByUser(ctx context.Context, userID uint, feedbacks bool) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := byKind(withCommentDetails(r.db.WithContext(ctx)).Preload("Product"), feedbacks).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountByUser(ctx context.Context, userID uint, feedbacks bool) (int64, error) {
	var count int64
	err := byKind(r.db.WithContext(ctx).Model(&models.Comment{}), feedbacks).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CreateSubmission stores a user submission with its files. With moderate set
// a moderation request is opened in the same transaction. The first image
// becomes the product's image when the product has none.
func (r *commentRepository) CreateSubmission(ctx context.Context, comment *models.Comment, moderate bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Moderation", "User", "Product").Create(comment).Error; err != nil {
			return err
		}
		if moderate {
			req := &models.ModerationRequest{
				CommentID:   comment.ID,
				Content:     comment.Content,
				Rating:      comment.Rating,
				SubmittedAt: time.Now(),
			}
			if err := tx.Create(req).Error; err != nil {
				return err
			}
			comment.Moderation = req
		}
		if comment.ProductID == nil {
			return nil
		}
		for _, f := range comment.Files {
			if f.FileType != models.FileTypeImage {
				continue
			}
			return tx.Model(&models.Product{}).
				Where("id = ? AND (image_link = '' OR image_link IS NULL)", *comment.ProductID).
				Update("image_link", f.FileLink).Error
		}
		return nil
	})
}

// UpdateSubmission saves edited content and rating and upserts the
// moderation request with the new snapshot.
func (r *commentRepository) UpdateSubmission(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).
			Where("id = ?", comment.ID).
			Updates(map[string]any{
				"content": comment.Content,
				"rating":  comment.Rating,
				"status":  comment.Status,
			}).Error; err != nil {
			return err
		}
		req := &models.ModerationRequest{
			CommentID:   comment.ID,
			Content:     comment.Content,
			Rating:      comment.Rating,
			SubmittedAt: time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "rating", "submitted_at"}),
		}).Create(req).Error; err != nil {
			return err
		}
		comment.Moderation = req
		return nil
	})
}

// Delete removes a comment together with its replies, files and moderation requests.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint{id}
		seen := map[uint]struct{}{id: {}}
		for frontier := []uint{id}; len(frontier) > 0; {
			var children []uint
			if err := tx.Model(&models.Comment{}).Where("reply_to_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
				return err
			}
			frontier = nil
			for _, c := range children {
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				ids = append(ids, c)
				frontier = append(frontier, c)
			}
		}

		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.ModerationRequest{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
}

func (r *commentRepository) ListPending(ctx context.Context, limit, offset int) ([]*models.Comment, int64, error) {
	pending := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id IN (SELECT comment_id FROM moderation_requests)")

	var total int64
	if err := pending.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []*models.Comment
	err := withCommentDetails(r.db.WithContext(ctx)).
		Preload("Product").
		Where("id IN (SELECT comment_id FROM moderation_requests)").
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, total, err
}

// Resolve closes the moderation request of a comment and records the decision.
func (r *commentRepository) Resolve(ctx context.Context, id uint, status models.CommentStatus, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id = ?", id).Delete(&models.ModerationRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		return tx.Model(&models.Comment{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": status, "reason": reason}).Error
	})
}

func (r *commentRepository) SetPromo(ctx context.Context, id uint, promo bool) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("promo", promo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertBySourceID stores a marketplace review keyed by its source id,
// replacing its files on update.
func (r *commentRepository) UpsertBySourceID(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		files := comment.Files
		comment.Files = nil

		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "source_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"product_id", "product_source_id", "content", "rating", "status",
					"wb_user", "reply_to_id", "source_date", "updated_at",
				}),
			}).
			Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.CommentFile{}).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].ID = 0
			files[i].CommentID = comment.ID
			files[i].Position = i
		}
		comment.Files = files
		if len(files) == 0 {
			return nil
		}
		return tx.Create(&files).Error
	})
}
