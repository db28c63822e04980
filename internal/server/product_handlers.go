package server

import (
	"reviewfeed/internal/models"
	"reviewfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProducts returns one page of the ranked product feed (public)
func (s *Server) GetProducts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	categoryID, err := s.queryID(c, "category_id")
	if err != nil {
		return nil
	}
	sourceID, err := s.querySourceID(c, "source_id")
	if err != nil {
		return nil
	}

	records, err := s.productFeed.List(ctx, service.ProductQuery{
		CategoryID: categoryID,
		SourceID:   sourceID,
		Search:     c.Query("search"),
		Promo:      c.QueryBool("promo", false),
	})
	if err != nil {
		return models.Respond(c, err)
	}

	viewer, err := s.viewer(c)
	if err != nil {
		return models.Respond(c, err)
	}

	page := paginate(records, parsePage(c))
	return c.JSON(withResults(page, s.projector.ProjectProducts(page.Results, viewer)))
}

// GetProduct returns one displayable product (public)
func (s *Server) GetProduct(c *fiber.Ctx) error {
	ctx := c.UserContext()

	productID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	record, err := s.productFeed.Get(ctx, productID)
	if err != nil {
		return models.Respond(c, err)
	}

	viewer, err := s.viewer(c)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(s.projector.ProjectProduct(record, viewer))
}

// GetCategories lists the root categories (public)
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.productFeed.RootCategories(c.UserContext(), c.Query("search"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(paginate(categories, parsePage(c)))
}

// ToggleLike likes or unlikes a product (protected)
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	productID, err := s.parseID(c, "product_id")
	if err != nil {
		return nil
	}

	liked, err := s.reactions.ToggleLike(c.UserContext(), currentUserID(c), productID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}

// ToggleFavorite adds or removes a product from the favorites (protected)
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	productID, err := s.parseID(c, "product_id")
	if err != nil {
		return nil
	}

	favorite, err := s.reactions.ToggleFavorite(c.UserContext(), currentUserID(c), productID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"favorite": favorite})
}

// GetFavorites returns the viewer's displayable favorites (protected)
func (s *Server) GetFavorites(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	records, err := s.reactions.Favorites(ctx, userID)
	if err != nil {
		return models.Respond(c, err)
	}
	viewer, err := s.viewer(c)
	if err != nil {
		return models.Respond(c, err)
	}

	page := paginate(records, parsePage(c))
	return c.JSON(withResults(page, s.projector.ProjectProducts(page.Results, viewer)))
}

// GetMyProfile returns the viewer's account and activity counters (protected)
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.reactions.Profile(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}
