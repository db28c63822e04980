package server

import (
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"
	"reviewfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type fileRequest struct {
	Link string          `json:"link"`
	Type models.FileType `json:"type"`
}

type submitRequest struct {
	Content  string        `json:"content"`
	Rating   int           `json:"rating"`
	SourceID *int64        `json:"source_id"`
	ReplyTo  *uint         `json:"reply_to"`
	Files    []fileRequest `json:"files"`
}

type editRequest struct {
	Content string `json:"content"`
	Rating  int    `json:"rating"`
}

// GetFeedbacks returns one page of top-level reviews with their reply threads (public)
func (s *Server) GetFeedbacks(c *fiber.Ctx) error {
	ctx := c.UserContext()

	productID, err := s.queryID(c, "product_id")
	if err != nil {
		return nil
	}

	records, err := s.commentFeed.Feedbacks(ctx, service.FeedbackQuery{
		ProductID: productID,
		Promo:     c.QueryBool("promo", false),
		HasFile:   c.QueryBool("has_file", false),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return s.respondComments(c, records)
}

// GetComments returns one page of replies (public)
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	productID, err := s.queryID(c, "product_id")
	if err != nil {
		return nil
	}
	feedbackID, err := s.queryID(c, "feedback_id")
	if err != nil {
		return nil
	}

	records, err := s.commentFeed.Replies(ctx, service.ReplyQuery{
		ProductID:  productID,
		FeedbackID: feedbackID,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return s.respondComments(c, records)
}

func (s *Server) respondComments(c *fiber.Ctx, records []feed.CommentRecord) error {
	viewer, err := s.viewer(c)
	if err != nil {
		return models.Respond(c, err)
	}
	page := paginate(records, parsePage(c))
	return c.JSON(withResults(page, s.projector.ProjectComments(page.Results, viewer, true)))
}

// CreateFeedback submits a review (protected)
func (s *Server) CreateFeedback(c *fiber.Ctx) error {
	return s.submit(c, false)
}

// CreateComment submits a reply to a review or another reply (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	return s.submit(c, true)
}

func (s *Server) submit(c *fiber.Ctx, reply bool) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(models.MsgInvalidBody))
	}

	in := service.SubmitInput{
		UserID:   userID,
		Reply:    reply,
		ReplyTo:  req.ReplyTo,
		SourceID: req.SourceID,
		Content:  req.Content,
		Rating:   req.Rating,
		Direct:   c.QueryBool("direct", false),
	}
	for _, f := range req.Files {
		in.Files = append(in.Files, service.FileInput{Link: f.Link, Type: f.Type})
	}

	created, err := s.commentFeed.Create(ctx, in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.projector.ProjectOwnComment(created, feed.Viewer{UserID: userID}))
}

// GetUserFeedbacks returns the viewer's own reviews in any moderation state (protected)
func (s *Server) GetUserFeedbacks(c *fiber.Ctx) error {
	userID := currentUserID(c)
	records, err := s.commentFeed.UserFeedbacks(c.UserContext(), userID)
	if err != nil {
		return models.Respond(c, err)
	}
	return s.respondOwn(c, userID, records)
}

// GetUserComments returns the viewer's own replies in any moderation state (protected)
func (s *Server) GetUserComments(c *fiber.Ctx) error {
	userID := currentUserID(c)
	records, err := s.commentFeed.UserComments(c.UserContext(), userID)
	if err != nil {
		return models.Respond(c, err)
	}
	return s.respondOwn(c, userID, records)
}

func (s *Server) respondOwn(c *fiber.Ctx, userID uint, records []feed.CommentRecord) error {
	page := paginate(records, parsePage(c))
	viewer := feed.Viewer{UserID: userID}
	views := make([]feed.CommentView, 0, len(page.Results))
	for _, rec := range page.Results {
		views = append(views, s.projector.ProjectOwnComment(rec, viewer))
	}
	return c.JSON(withResults(page, views))
}

// UpdateUserComment edits an own review or reply (protected)
func (s *Server) UpdateUserComment(c *fiber.Ctx) error {
	userID := currentUserID(c)

	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(models.MsgInvalidBody))
	}

	updated, err := s.commentFeed.Update(c.UserContext(), service.EditInput{
		UserID:    userID,
		CommentID: commentID,
		Content:   req.Content,
		Rating:    req.Rating,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(s.projector.ProjectOwnComment(updated, feed.Viewer{UserID: userID}))
}

// DeleteUserComment deletes an own review or reply with its thread (protected)
func (s *Server) DeleteUserComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentFeed.Delete(c.UserContext(), currentUserID(c), commentID); err != nil {
		return models.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
