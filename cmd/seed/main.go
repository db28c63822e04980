// Command seed fills the development database with a catalog, products and reviews.
package main

import (
	"context"
	"flag"
	"log"

	"reviewfeed/internal/config"
	"reviewfeed/internal/database"
	"reviewfeed/internal/repository"
	"reviewfeed/internal/seed"
	"reviewfeed/internal/service"
)

func main() {
	products := flag.Int("products", 40, "Number of products to create")
	reviews := flag.Int("reviews", 5, "Number of reviews per product")
	users := flag.Int("users", 10, "Number of user accounts to create")
	admin := flag.String("admin", "admin@example.com", "Email of the moderator account (empty to skip)")
	textOnly := flag.Int("text-only", 4, "Make every n-th review text-only (0 to disable)")
	seedValue := flag.Int64("seed", 1, "Random seed; the same seed rewrites the same rows")
	flag.Parse()

	log.Println("Review feed seeder")
	log.Printf("Target: %d products, %d reviews each, %d users, seed=%d\n", *products, *reviews, *users, *seedValue)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	catalog, err := seed.DefaultCatalog()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	ingest := service.NewIngestService(
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		repository.NewCommentRepository(db),
	)
	s := seed.NewSeeder(ingest, repository.NewUserRepository(db), *seedValue)

	sum, err := s.Run(context.Background(), catalog, seed.Options{
		Products:          *products,
		ReviewsPerProduct: *reviews,
		Users:             *users,
		AdminEmail:        *admin,
		TextOnlyEvery:     *textOnly,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d categories, %d products, %d reviews, %d users\n",
		sum.Categories, sum.Products, sum.Reviews, sum.Users)
}
