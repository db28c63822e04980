package server

import (
	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetPendingComments returns one page of the moderation queue, oldest first (admin)
func (s *Server) GetPendingComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePage(c)

	records, total, err := s.moderation.ListPending(ctx, page.Size, page.offset())
	if err != nil {
		return models.Respond(c, err)
	}
	if clamped := page.clamp(int(total)); clamped != page {
		page = clamped
		records, total, err = s.moderation.ListPending(ctx, page.Size, page.offset())
		if err != nil {
			return models.Respond(c, err)
		}
	}

	views := make([]feed.CommentView, 0, len(records))
	for _, rec := range records {
		views = append(views, s.projector.ProjectOwnComment(rec, feed.Anonymous))
	}
	return c.JSON(envelope(views, int(total), page))
}

// AcceptComment publishes a pending comment (admin)
func (s *Server) AcceptComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.moderation.Accept(c.UserContext(), commentID); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"id": commentID, "status": models.StatusAccepted})
}

// RejectComment hides a pending comment with a reason (admin)
func (s *Server) RejectComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(models.MsgInvalidBody))
	}

	if err := s.moderation.Reject(c.UserContext(), commentID, req.Reason); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"id": commentID, "status": models.StatusNotAccepted})
}

// SetCommentPromo marks or unmarks a comment as promoted (admin)
func (s *Server) SetCommentPromo(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Promo bool `json:"promo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(models.MsgInvalidBody))
	}

	if err := s.moderation.SetPromo(c.UserContext(), commentID, req.Promo); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"id": commentID, "promo": req.Promo})
}
