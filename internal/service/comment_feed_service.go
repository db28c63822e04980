package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"unicode/utf8"

	"reviewfeed/internal/cache"
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/observability"
	"reviewfeed/internal/repository"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	maxContentLen = 10000
	maxRating     = 5
)

// FeedbackQuery selects a feedback listing.
type FeedbackQuery struct {
	ProductID *uint
	Promo     bool
	HasFile   bool
}

// ReplyQuery selects a reply listing.
type ReplyQuery struct {
	ProductID  *uint
	FeedbackID *uint
}

// FileInput is an attachment of a submission.
type FileInput struct {
	Link string
	Type models.FileType
}

// SubmitInput is a review or reply written by a user.
type SubmitInput struct {
	UserID uint
	// Reply marks a reply; ReplyTo is then required.
	Reply    bool
	ReplyTo  *uint
	SourceID *int64
	Content  string
	Rating   int
	Files    []FileInput
	Direct   bool
}

// EditInput changes the text of an own comment.
type EditInput struct {
	UserID    uint
	CommentID uint
	Content   string
	Rating    int
}

// CommentFeedService serves feedback threads and replies and handles user submissions.
type CommentFeedService struct {
	comments  repository.CommentRepository
	products  repository.ProductRepository
	catalog   *ProductFeedService
	cache     *cache.Store
	settings  Settings
	sanitizer *bluemonday.Policy
	isAdmin   func(ctx context.Context, userID uint) (bool, error)
	newRand   func() *rand.Rand
}

// NewCommentFeedService creates a CommentFeedService. isAdmin decides whether
// a submission may skip moderation; nil means never.
func NewCommentFeedService(
	comments repository.CommentRepository,
	products repository.ProductRepository,
	catalog *ProductFeedService,
	store *cache.Store,
	settings Settings,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentFeedService {
	return &CommentFeedService{
		comments:  comments,
		products:  products,
		catalog:   catalog,
		cache:     store,
		settings:  settings,
		sanitizer: bluemonday.StrictPolicy(),
		isAdmin:   isAdmin,
		newRand:   feed.NewRand,
	}
}

func isPromoComment(r feed.CommentRecord) bool { return r.Promo }

// Feedbacks returns top-level reviews with their flattened reply threads,
// newest first. A product id without feedbacks is retried as a variant id.
func (s *CommentFeedService) Feedbacks(ctx context.Context, q FeedbackQuery) ([]feed.CommentRecord, error) {
	ctx, span := observability.StartFeedSpan(ctx, "feedbacks.list",
		attribute.Bool("promo", q.Promo),
		attribute.Bool("has_file", q.HasFile),
	)
	defer span.End()

	if q.ProductID == nil {
		records, err := s.allFeedbacks(ctx, q.Promo, q.HasFile)
		return records, span.Fail(err)
	}

	records, err := s.productFeedbacks(ctx, *q.ProductID, q.HasFile)
	if err != nil || len(records) > 0 {
		return records, span.Fail(err)
	}
	productID, err := s.products.ProductIDForVariant(ctx, *q.ProductID)
	if errors.Is(err, gorm.ErrRecordNotFound) || productID == *q.ProductID {
		return records, nil
	}
	if err != nil {
		return nil, span.Fail(fmt.Errorf("resolve variant %d: %w", *q.ProductID, err))
	}
	span.Set(attribute.Int("product_id", int(productID)))
	return s.productFeedbacks(ctx, productID, q.HasFile)
}

func (s *CommentFeedService) productFeedbacks(ctx context.Context, productID uint, hasFile bool) ([]feed.CommentRecord, error) {
	var records []feed.CommentRecord
	err := s.cache.Aside(ctx, cache.ProductFeedbacksKey(productID, hasFile), &records, s.settings.EntityTTL, func(ctx context.Context) error {
		threads, err := s.threads(ctx, []uint{productID}, hasFile)
		records = threads
		return err
	})
	return records, err
}

func (s *CommentFeedService) allFeedbacks(ctx context.Context, promo, hasFile bool) ([]feed.CommentRecord, error) {
	var records []feed.CommentRecord
	err := s.cache.Aside(ctx, cache.AllFeedbacksKey(promo, hasFile), &records, s.settings.FeedTTL, func(ctx context.Context) error {
		displayable, err := s.catalog.Displayable(ctx)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(displayable))
		for id := range displayable {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		threads, err := s.threads(ctx, ids, hasFile)
		if err != nil {
			return err
		}
		if promo {
			threads = feed.Promote(threads, isPromoComment, s.newRand())
		}
		records = threads
		return nil
	})
	return records, err
}

// threads assembles the visible feedbacks of products, newest first.
func (s *CommentFeedService) threads(ctx context.Context, productIDs []uint, hasFile bool) ([]feed.CommentRecord, error) {
	feedbacks, err := s.comments.ListFeedbacks(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	visible := make([]*models.Comment, 0, len(feedbacks))
	for _, c := range feedbacks {
		if feed.IsFeedComment(c, hasFile) {
			visible = append(visible, c)
		}
	}
	feed.SortNewestFirst(visible)
	return s.withReplies(ctx, visible)
}

func (s *CommentFeedService) withReplies(ctx context.Context, roots []*models.Comment) ([]feed.CommentRecord, error) {
	ids := make([]uint, len(roots))
	for i, c := range roots {
		ids[i] = c.ID
	}
	ix, err := s.comments.LoadReplyIndex(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	records := make([]feed.CommentRecord, 0, len(roots))
	for _, c := range roots {
		records = append(records, feed.NewThreadRecord(c, ix))
	}
	return records, nil
}

// Replies returns replies under a feedback, of a product, or all of them.
// Under a feedback only direct replies are listed; each reply carries its own
// flattened thread.
func (s *CommentFeedService) Replies(ctx context.Context, q ReplyQuery) ([]feed.CommentRecord, error) {
	ctx, span := observability.StartFeedSpan(ctx, "replies.list")
	defer span.End()

	var (
		key     string
		compute func(ctx context.Context) ([]feed.CommentRecord, error)
	)
	switch {
	case q.FeedbackID != nil:
		id := *q.FeedbackID
		key = cache.FeedbackRepliesKey(id)
		compute = func(ctx context.Context) ([]feed.CommentRecord, error) {
			ix, err := s.comments.LoadReplyIndex(ctx, []uint{id})
			if err != nil {
				return nil, fmt.Errorf("load replies: %w", err)
			}
			return s.withReplies(ctx, feed.CollectReplies(id, ix, false))
		}
	default:
		productID := q.ProductID
		key = cache.AllRepliesKey()
		if productID != nil {
			key = cache.ProductRepliesKey(*productID)
		}
		compute = func(ctx context.Context) ([]feed.CommentRecord, error) {
			replies, err := s.comments.ListReplies(ctx, productID)
			if err != nil {
				return nil, fmt.Errorf("list replies: %w", err)
			}
			visible := make([]*models.Comment, 0, len(replies))
			for _, r := range replies {
				if feed.IsVisibleReply(r) {
					visible = append(visible, r)
				}
			}
			visible = feed.DedupLatest(visible)
			feed.SortNewestFirst(visible)
			return s.withReplies(ctx, visible)
		}
	}

	var records []feed.CommentRecord
	err := s.cache.Aside(ctx, key, &records, s.settings.EntityTTL, func(ctx context.Context) error {
		out, err := compute(ctx)
		records = out
		return err
	})
	return records, span.Fail(err)
}

// WarmProduct fills the default feedback listing of a product unless it is cached.
func (s *CommentFeedService) WarmProduct(ctx context.Context, productID uint) error {
	if s.cache.Cached(ctx, cache.ProductFeedbacksKey(productID, false)) {
		return nil
	}
	_, err := s.productFeedbacks(ctx, productID, false)
	return err
}

// UserFeedbacks lists the reviews written by a user in any moderation state.
func (s *CommentFeedService) UserFeedbacks(ctx context.Context, userID uint) ([]feed.CommentRecord, error) {
	return s.ownComments(ctx, userID, true)
}

// UserComments lists the replies written by a user in any moderation state.
func (s *CommentFeedService) UserComments(ctx context.Context, userID uint) ([]feed.CommentRecord, error) {
	return s.ownComments(ctx, userID, false)
}

func (s *CommentFeedService) ownComments(ctx context.Context, userID uint, feedbacks bool) ([]feed.CommentRecord, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	comments, err := s.comments.ListByUser(ctx, userID, feedbacks)
	if err != nil {
		return nil, fmt.Errorf("list user comments: %w", err)
	}
	records := make([]feed.CommentRecord, 0, len(comments))
	for _, c := range comments {
		records = append(records, feed.NewCommentRecord(c))
	}
	return records, nil
}

func (s *CommentFeedService) cleanContent(content string, rating int) (string, error) {
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return "", models.NewValidationError(models.MsgContentRequired)
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return "", models.NewValidationError(models.MsgContentTooLong)
	}
	if rating < 0 || rating > maxRating {
		return "", models.NewValidationError(models.MsgRatingOutOfRange)
	}
	return content, nil
}

// Create stores a submission. It waits for moderation unless an admin asks
// for direct publication.
func (s *CommentFeedService) Create(ctx context.Context, in SubmitInput) (feed.CommentRecord, error) {
	if in.UserID == 0 {
		return feed.CommentRecord{}, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	if in.Reply && in.ReplyTo == nil {
		return feed.CommentRecord{}, models.NewValidationError(models.MsgReplyRequired)
	}
	content, err := s.cleanContent(in.Content, in.Rating)
	if err != nil {
		return feed.CommentRecord{}, err
	}

	comment := &models.Comment{
		Content:   content,
		Rating:    in.Rating,
		UserID:    &in.UserID,
		ReplyToID: in.ReplyTo,
		Status:    models.StatusNotReviewed,
	}

	var parent *models.Comment
	if in.ReplyTo != nil {
		parent, err = s.comments.GetByID(ctx, *in.ReplyTo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return feed.CommentRecord{}, models.NewNotFoundError(models.MsgCommentNotFound)
		}
		if err != nil {
			return feed.CommentRecord{}, fmt.Errorf("load replied comment: %w", err)
		}
	}

	if in.SourceID != nil {
		product, err := s.products.FindBySourceID(ctx, *in.SourceID)
		switch {
		case err == nil:
			comment.ProductID = &product.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return feed.CommentRecord{}, fmt.Errorf("resolve product: %w", err)
		}
	}
	if comment.ProductID == nil && parent != nil {
		comment.ProductID = parent.ProductID
	}
	if comment.ProductID == nil {
		comment.ProductSourceID = in.SourceID
	}

	for i, f := range in.Files {
		if strings.TrimSpace(f.Link) == "" {
			continue
		}
		fileType := f.Type
		if fileType == "" {
			fileType = models.FileTypeImage
		}
		comment.Files = append(comment.Files, models.CommentFile{FileLink: f.Link, FileType: fileType, Position: i})
	}

	moderate := true
	if in.Direct && s.isAdmin != nil {
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return feed.CommentRecord{}, err
		}
		if admin {
			moderate = false
			comment.Status = models.StatusAccepted
		}
	}

	if err := s.comments.CreateSubmission(ctx, comment, moderate); err != nil {
		return feed.CommentRecord{}, fmt.Errorf("create comment: %w", err)
	}
	return s.reload(ctx, comment.ID)
}

func (s *CommentFeedService) reload(ctx context.Context, id uint) (feed.CommentRecord, error) {
	stored, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return feed.CommentRecord{}, fmt.Errorf("reload comment %d: %w", id, err)
	}
	return feed.NewCommentRecord(stored), nil
}

func (s *CommentFeedService) owned(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError(models.MsgCommentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load comment %d: %w", commentID, err)
	}
	if comment.UserID == nil || *comment.UserID != userID {
		return nil, models.NewNotFoundError(models.MsgCommentNotFound)
	}
	return comment, nil
}

// Update edits an own comment and sends it back to moderation. Feedbacks and
// rejected comments lose their published status.
func (s *CommentFeedService) Update(ctx context.Context, in EditInput) (feed.CommentRecord, error) {
	comment, err := s.owned(ctx, in.UserID, in.CommentID)
	if err != nil {
		return feed.CommentRecord{}, err
	}
	content, err := s.cleanContent(in.Content, in.Rating)
	if err != nil {
		return feed.CommentRecord{}, err
	}

	comment.Content = content
	comment.Rating = in.Rating
	if comment.IsFeedback() || comment.Status == models.StatusNotAccepted {
		comment.Status = models.StatusNotReviewed
	}
	if err := s.comments.UpdateSubmission(ctx, comment); err != nil {
		return feed.CommentRecord{}, fmt.Errorf("update comment %d: %w", comment.ID, err)
	}
	return s.reload(ctx, comment.ID)
}

// Delete removes an own comment and everything replying to it.
func (s *CommentFeedService) Delete(ctx context.Context, userID, commentID uint) error {
	if _, err := s.owned(ctx, userID, commentID); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	return nil
}
