// Package seed fills a development database with a marketplace catalog and
// fake products, reviews and accounts. It writes through the ingestion
// service, exactly like a scraper would.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"time"

	"reviewfeed/internal/models"
	"reviewfeed/internal/repository"
	"reviewfeed/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Source id ranges of generated entities; they stay clear of real catalog ids.
const (
	productSourceBase = 900_000_000
	variantSourceBase = 950_000_000
	reviewSourceBase  = 800_000_000
)

// CategoryNode is one catalog entry with its subtree.
type CategoryNode struct {
	SourceID int64          `yaml:"source_id"`
	Title    string         `yaml:"title"`
	Slug     string         `yaml:"slug"`
	Shard    string         `yaml:"shard"`
	Position int            `yaml:"position"`
	Children []CategoryNode `yaml:"children"`
}

// Catalog is the category tree fixture.
type Catalog struct {
	Categories []CategoryNode `yaml:"categories"`
}

// LoadCatalog parses a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &c, nil
}

// DefaultCatalog returns the bundled development catalog.
func DefaultCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(defaultCatalog, &c); err != nil {
		return nil, fmt.Errorf("decode bundled catalog: %w", err)
	}
	return &c, nil
}

// Options controls how much fake data is generated.
type Options struct {
	Products          int
	ReviewsPerProduct int
	Users             int
	AdminEmail        string
	// Every n-th review carries no attachment and stays out of the feed.
	TextOnlyEvery int
}

// Summary counts what a run wrote.
type Summary struct {
	Categories int
	Products   int
	Reviews    int
	Users      int
}

// Seeder writes development data.
type Seeder struct {
	ingest *service.IngestService
	users  repository.UserRepository
	faker  *gofakeit.Faker
	now    func() time.Time
}

// NewSeeder creates a Seeder. The same seed produces the same data, so
// reruns update rows instead of adding new ones.
func NewSeeder(ingest *service.IngestService, users repository.UserRepository, seed int64) *Seeder {
	return &Seeder{
		ingest: ingest,
		users:  users,
		faker:  gofakeit.New(seed),
		now:    time.Now,
	}
}

// Run writes the catalog, then products with variants and reviews, then user accounts.
func (s *Seeder) Run(ctx context.Context, catalog *Catalog, opts Options) (Summary, error) {
	var sum Summary

	var leaves []int64
	var walk func(nodes []CategoryNode, parent *int64) error
	walk = func(nodes []CategoryNode, parent *int64) error {
		for _, n := range nodes {
			if _, err := s.ingest.UpsertCategory(ctx, service.CategoryInput{
				SourceID:       n.SourceID,
				ParentSourceID: parent,
				Title:          n.Title,
				SlugName:       n.Slug,
				Shard:          n.Shard,
				Position:       n.Position,
			}); err != nil {
				return fmt.Errorf("category %d: %w", n.SourceID, err)
			}
			sum.Categories++
			if len(n.Children) == 0 && n.Shard == "" {
				leaves = append(leaves, n.SourceID)
			}
			id := n.SourceID
			if err := walk(n.Children, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if catalog != nil {
		if err := walk(catalog.Categories, nil); err != nil {
			return sum, err
		}
	}

	review := 0
	for i := range opts.Products {
		product := s.product(i, leaves)
		if _, err := s.ingest.UpsertProduct(ctx, product); err != nil {
			return sum, fmt.Errorf("product %d: %w", product.SourceID, err)
		}
		sum.Products++

		for range opts.ReviewsPerProduct {
			in := s.review(review, product.SourceID, opts.TextOnlyEvery)
			if _, err := s.ingest.UpsertComment(ctx, in); err != nil {
				return sum, fmt.Errorf("review %d: %w", in.SourceID, err)
			}
			review++
			sum.Reviews++
		}
	}

	for range opts.Users {
		u := &models.User{Email: s.faker.Email(), FullName: s.faker.Name()}
		if err := s.users.UpsertByEmail(ctx, u); err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Email, err)
		}
		sum.Users++
	}
	if opts.AdminEmail != "" {
		admin := &models.User{Email: opts.AdminEmail, FullName: "Administrator", IsAdmin: true}
		if err := s.users.UpsertByEmail(ctx, admin); err != nil {
			return sum, fmt.Errorf("admin %s: %w", admin.Email, err)
		}
		sum.Users++
	}

	return sum, nil
}

func (s *Seeder) product(i int, leaves []int64) service.ProductInput {
	f := s.faker
	in := service.ProductInput{
		SourceID: int64(productSourceBase + i),
		Title:    fmt.Sprintf("%s %d", f.ProductName(), i+1),
	}
	if len(leaves) > 0 {
		category := leaves[i%len(leaves)]
		in.CategorySourceID = &category
	}
	root := in.SourceID
	in.Root = &root

	for v := range f.Number(1, 3) {
		variant := service.VariantInput{
			SourceID: int64(variantSourceBase + i*10 + v),
			Color:    f.Color(),
			Price:    fmt.Sprintf("%d ₽", f.Number(300, 15000)),
		}
		for img := range f.Number(1, 3) {
			variant.Images = append(variant.Images, service.FileInput{
				Link: fmt.Sprintf("https://picsum.photos/seed/wb-%d-%d-%d/600/800", i, v, img),
				Type: models.FileTypeImage,
			})
		}
		in.Variants = append(in.Variants, variant)
	}
	return in
}

func (s *Seeder) review(n int, productSourceID int64, textOnlyEvery int) service.ReviewInput {
	f := s.faker
	date := f.DateRange(s.now().AddDate(0, -6, 0), s.now())
	in := service.ReviewInput{
		SourceID:        int64(reviewSourceBase + n),
		ProductSourceID: productSourceID,
		WbUser:          f.FirstName(),
		Content:         f.Sentence(f.Number(6, 24)),
		Rating:          f.Number(1, 5),
		SourceDate:      &date,
	}
	if textOnlyEvery > 0 && n%textOnlyEvery == textOnlyEvery-1 {
		return in
	}
	in.Files = append(in.Files, service.FileInput{
		Link: fmt.Sprintf("https://picsum.photos/seed/review-%d/800/800", n),
		Type: models.FileTypeImage,
	})
	if f.Number(1, 10) == 1 {
		in.Files = append(in.Files, service.FileInput{
			Link: fmt.Sprintf("https://video.example.com/review-%d/index.m3u8", n),
			Type: models.FileTypeVideo,
		})
	}
	return in
}
