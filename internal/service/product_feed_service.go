// Package service contains the feed use cases: it combines repositories, the
// pure feed rules and the cache into the views served over HTTP.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"reviewfeed/internal/cache"
	"reviewfeed/internal/featureflags"
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/observability"
	"reviewfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// prewarmHead is how many products of a freshly ranked list get their
// feedbacks warmed.
const prewarmHead = 20

// Settings are the feed tunables shared by the services.
type Settings struct {
	FeedTTL         time.Duration
	EntityTTL       time.Duration
	ViewerTTL       time.Duration
	NewProductsDays int
}

// Prewarmer accepts products whose feedback cache should be filled in the background.
type Prewarmer interface {
	Schedule(productID uint)
}

// ProductQuery selects a product listing.
type ProductQuery struct {
	CategoryID *uint
	SourceID   *int64
	Search     string
	Promo      bool
}

// ProductFeedService serves ranked product listings and the catalog tree.
type ProductFeedService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	cache      *cache.Store
	flags      *featureflags.Manager
	settings   Settings
	prewarm    Prewarmer
	now        func() time.Time
	newRand    func() *rand.Rand
}

// NewProductFeedService creates a ProductFeedService. prewarm may be nil.
func NewProductFeedService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	store *cache.Store,
	flags *featureflags.Manager,
	settings Settings,
	prewarm Prewarmer,
) *ProductFeedService {
	return &ProductFeedService{
		products:   products,
		categories: categories,
		cache:      store,
		flags:      flags,
		settings:   settings,
		prewarm:    prewarm,
		now:        time.Now,
		newRand:    feed.NewRand,
	}
}

// SetPrewarmer attaches the background warmer once it exists.
func (s *ProductFeedService) SetPrewarmer(p Prewarmer) {
	s.prewarm = p
}

func (s *ProductFeedService) policy() feed.Policy {
	return feed.Policy{RequireVariantImages: s.flags.Enabled(featureflags.StrictVariantImages, 0)}
}

func isPromoted(r feed.ProductRecord) bool { return r.Promoted }

// List returns the ranked products of a listing. Within the cache TTL every
// call sees the same order.
func (s *ProductFeedService) List(ctx context.Context, q ProductQuery) ([]feed.ProductRecord, error) {
	ctx, span := observability.StartFeedSpan(ctx, "products.list", attribute.Bool("promo", q.Promo))
	defer span.End()

	var (
		records []feed.ProductRecord
		err     error
	)
	if q.CategoryID != nil {
		span.Set(attribute.Int("category_id", int(*q.CategoryID)))
		records, err = s.categoryListing(ctx, *q.CategoryID, q.Promo)
	} else {
		records, err = s.allProducts(ctx, q.Promo)
	}
	if err != nil {
		return nil, span.Fail(err)
	}
	return filterProducts(records, q.SourceID, q.Search), nil
}

func filterProducts(records []feed.ProductRecord, sourceID *int64, search string) []feed.ProductRecord {
	search = strings.ToLower(strings.TrimSpace(search))
	if sourceID == nil && search == "" {
		return records
	}
	out := make([]feed.ProductRecord, 0, len(records))
	for _, r := range records {
		if sourceID != nil && (r.SourceID == nil || *r.SourceID != *sourceID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Title), search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *ProductFeedService) allProducts(ctx context.Context, promo bool) ([]feed.ProductRecord, error) {
	var records []feed.ProductRecord
	err := s.cache.Aside(ctx, cache.ProductsKey(promo), &records, s.settings.FeedTTL, func(ctx context.Context) error {
		candidates, err := s.eligible(ctx, repository.ProductFilter{})
		if err != nil {
			return err
		}
		records = feed.Rank(candidates, promo, isPromoted, s.newRand())
		s.schedulePrewarm(records)
		return nil
	})
	return records, err
}

func (s *ProductFeedService) categoryListing(ctx context.Context, categoryID uint, promo bool) ([]feed.ProductRecord, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(catalog, func(c models.Category) bool { return c.ID == categoryID })
	if idx < 0 {
		return []feed.ProductRecord{}, nil
	}
	category := catalog[idx]

	var records []feed.ProductRecord
	err = s.cache.Aside(ctx, cache.CategoryProductsKey(categoryID, promo), &records, s.settings.FeedTTL, func(ctx context.Context) error {
		var ranked []feed.ProductRecord
		switch category.Shard {
		case models.ShardPopular:
			candidates, err := s.eligible(ctx, repository.ProductFilter{MoreLikesThan: 2})
			if err != nil {
				return err
			}
			slices.SortStableFunc(candidates, func(a, b feed.ProductRecord) int {
				return cmp.Or(cmp.Compare(b.Likes, a.Likes), cmp.Compare(a.ID, b.ID))
			})
			ranked = promoteIf(candidates, promo, s.newRand())
		case models.ShardNew:
			cutoff, err := s.newCutoff(ctx)
			if err != nil {
				return err
			}
			candidates, err := s.eligible(ctx, repository.ProductFilter{CreatedSince: &cutoff})
			if err != nil {
				return err
			}
			slices.SortStableFunc(candidates, func(a, b feed.ProductRecord) int {
				return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
			})
			ranked = promoteIf(candidates, promo, s.newRand())
		default:
			candidates, err := s.eligible(ctx, repository.ProductFilter{CategoryIDs: feed.Descendants(catalog, categoryID)})
			if err != nil {
				return err
			}
			ranked = feed.Rank(candidates, promo, isPromoted, s.newRand())
		}
		records = ranked
		s.schedulePrewarm(records)
		return nil
	})
	return records, err
}

func promoteIf(records []feed.ProductRecord, promo bool, rng *rand.Rand) []feed.ProductRecord {
	if !promo {
		return records
	}
	return feed.Promote(records, isPromoted, rng)
}

type cutoffSnapshot struct {
	Cutoff time.Time `json:"cutoff"`
}

// newCutoff is the start of the day NewProductsDays ago, reused for a day.
func (s *ProductFeedService) newCutoff(ctx context.Context) (time.Time, error) {
	var snap cutoffSnapshot
	err := s.cache.Aside(ctx, cache.NewCutoffKey(), &snap, cache.NewCutoffTTL, func(context.Context) error {
		y, m, d := s.now().AddDate(0, 0, -s.settings.NewProductsDays).Date()
		snap.Cutoff = time.Date(y, m, d, 0, 0, 0, 0, s.now().Location())
		return nil
	})
	return snap.Cutoff, err
}

func (s *ProductFeedService) eligible(ctx context.Context, filter repository.ProductFilter) ([]feed.ProductRecord, error) {
	products, err := s.products.ListCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list product candidates: %w", err)
	}
	policy := s.policy()
	records := make([]feed.ProductRecord, 0, len(products))
	for i := range products {
		if feed.IsDisplayable(&products[i], policy) {
			records = append(records, feed.NewProductRecord(&products[i]))
		}
	}
	return records, nil
}

func (s *ProductFeedService) schedulePrewarm(records []feed.ProductRecord) {
	if s.prewarm == nil {
		return
	}
	for _, r := range records[:min(prewarmHead, len(records))] {
		s.prewarm.Schedule(r.ID)
	}
}

// Get returns one displayable product.
func (s *ProductFeedService) Get(ctx context.Context, id uint) (feed.ProductRecord, error) {
	product, err := s.products.GetCandidate(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return feed.ProductRecord{}, models.NewValidationError(models.MsgProductUnavailable)
	}
	if err != nil {
		return feed.ProductRecord{}, fmt.Errorf("get product %d: %w", id, err)
	}
	if !feed.IsDisplayable(product, s.policy()) {
		return feed.ProductRecord{}, models.NewValidationError(models.MsgProductUnavailable)
	}
	return feed.NewProductRecord(product), nil
}

// Displayable returns every displayable product keyed by id.
func (s *ProductFeedService) Displayable(ctx context.Context) (map[uint]feed.ProductRecord, error) {
	records, err := s.allProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]feed.ProductRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out, nil
}

func (s *ProductFeedService) catalog(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.cache.Aside(ctx, cache.CategoriesKey(), &categories, s.settings.EntityTTL, func(ctx context.Context) error {
		all, err := s.categories.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		categories = all
		return nil
	})
	return categories, err
}

// RootCategories lists top-level categories, positioned ones first.
func (s *ProductFeedService) RootCategories(ctx context.Context, search string) ([]models.Category, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	roots := make([]models.Category, 0, len(catalog))
	for _, c := range catalog {
		if c.ParentID != nil {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		roots = append(roots, c)
	}
	feed.SortCategories(roots)
	return roots, nil
}
