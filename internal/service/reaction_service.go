package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reviewfeed/internal/cache"
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Profile summarizes a user's activity.
type Profile struct {
	ID             uint   `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	IsAdmin        bool   `json:"is_admin"`
	FavoritesCount int64  `json:"favorites_count"`
	FeedbacksCount int64  `json:"feedbacks_count"`
	CommentsCount  int64  `json:"comments_count"`
}

// ReactionService manages likes and favorites and the per-viewer reaction sets.
type ReactionService struct {
	reactions repository.ReactionRepository
	products  repository.ProductRepository
	comments  repository.CommentRepository
	users     repository.UserRepository
	catalog   *ProductFeedService
	cache     *cache.Store
	viewerTTL time.Duration
}

// NewReactionService creates a ReactionService.
func NewReactionService(
	reactions repository.ReactionRepository,
	products repository.ProductRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	catalog *ProductFeedService,
	store *cache.Store,
	viewerTTL time.Duration,
) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		products:  products,
		comments:  comments,
		users:     users,
		catalog:   catalog,
		cache:     store,
		viewerTTL: viewerTTL,
	}
}

type viewerSnapshot struct {
	Liked     []uint `json:"liked"`
	Favorites []uint `json:"favorites"`
}

// Viewer loads the reaction sets of a user once per request. Anonymous
// viewers get empty sets without touching storage.
func (s *ReactionService) Viewer(ctx context.Context, userID uint) (feed.Viewer, error) {
	if userID == 0 {
		return feed.Anonymous, nil
	}
	var snap viewerSnapshot
	err := s.cache.Aside(ctx, cache.ViewerKey(userID), &snap, s.viewerTTL, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ids, err := s.reactions.LikedProductIDs(gctx, userID)
			snap.Liked = ids
			return err
		})
		g.Go(func() error {
			ids, err := s.reactions.FavoriteProductIDs(gctx, userID)
			snap.Favorites = ids
			return err
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("load reactions of user %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return feed.Viewer{}, err
	}
	return feed.NewViewer(userID, snap.Liked, snap.Favorites), nil
}

func (s *ReactionService) checkTarget(ctx context.Context, userID, productID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	exists, err := s.products.Exists(ctx, productID)
	if err != nil {
		return fmt.Errorf("check product %d: %w", productID, err)
	}
	if !exists {
		return models.NewNotFoundError(models.MsgProductNotFound)
	}
	return nil
}

// ToggleLike flips the like of a product and reports the new state.
func (s *ReactionService) ToggleLike(ctx context.Context, userID, productID uint) (bool, error) {
	if err := s.checkTarget(ctx, userID, productID); err != nil {
		return false, err
	}
	liked, err := s.reactions.ToggleLike(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	s.cache.Invalidate(ctx, cache.ViewerKey(userID))
	return liked, nil
}

// ToggleFavorite flips the favorite mark of a product and reports the new state.
func (s *ReactionService) ToggleFavorite(ctx context.Context, userID, productID uint) (bool, error) {
	if err := s.checkTarget(ctx, userID, productID); err != nil {
		return false, err
	}
	favorite, err := s.reactions.ToggleFavorite(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	s.cache.Invalidate(ctx, cache.ViewerKey(userID))
	return favorite, nil
}

// Favorites lists the displayable favorites of a user, latest first.
func (s *ReactionService) Favorites(ctx context.Context, userID uint) ([]feed.ProductRecord, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	favorites, err := s.reactions.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	displayable, err := s.catalog.Displayable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]feed.ProductRecord, 0, len(favorites))
	for _, f := range favorites {
		if rec, ok := displayable[f.ProductID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Profile returns the account with its activity counters.
func (s *ReactionService) Profile(ctx context.Context, userID uint) (Profile, error) {
	if userID == 0 {
		return Profile{}, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, models.NewUnauthorizedError(models.MsgNotAuthenticated)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	p := Profile{ID: user.ID, Email: user.Email, FullName: user.FullName, IsAdmin: user.IsAdmin}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.FavoritesCount, err = s.reactions.CountFavorites(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		p.FeedbacksCount, err = s.comments.CountByUser(gctx, userID, true)
		return err
	})
	g.Go(func() (err error) {
		p.CommentsCount, err = s.comments.CountByUser(gctx, userID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, fmt.Errorf("count activity of user %d: %w", userID, err)
	}
	return p, nil
}
