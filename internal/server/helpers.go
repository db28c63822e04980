package server

import (
	"errors"
	"strconv"

	"reviewfeed/internal/feed"
	"reviewfeed/internal/middleware"
	"reviewfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// parsePage reads the page and count query parameters. Garbage falls back to
// the first page of the default size.
func parsePage(c *fiber.Ctx) Page {
	size := c.QueryInt("count", defaultPageSize)
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	number := c.QueryInt("page", 1)
	if number < 1 {
		number = 1
	}
	return Page{Number: number, Size: size}
}

// clamp moves a page past the end back onto the last page.
func (p Page) clamp(total int) Page {
	last := max(1, (total+p.Size-1)/p.Size)
	if p.Number > last {
		p.Number = last
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// Envelope is the paginated response body.
type Envelope[T any] struct {
	Total    int  `json:"total"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
	Current  int  `json:"current"`
	Results  []T  `json:"results"`
}

// envelope wraps one already clamped page of results.
func envelope[T any](results []T, total int, p Page) Envelope[T] {
	env := Envelope[T]{Total: total, Current: p.Number, Results: results}
	if env.Results == nil {
		env.Results = []T{}
	}
	if p.offset()+p.Size < total {
		next := p.Number + 1
		env.Next = &next
	}
	if p.Number > 1 {
		prev := p.Number - 1
		env.Previous = &prev
	}
	return env
}

// paginate cuts one page out of a complete listing.
func paginate[T any](items []T, p Page) Envelope[T] {
	p = p.clamp(len(items))
	start := min(p.offset(), len(items))
	end := min(start+p.Size, len(items))
	return envelope(items[start:end], len(items), p)
}

// withResults replaces the results of an envelope, keeping its position.
func withResults[T, U any](env Envelope[T], results []U) Envelope[U] {
	if results == nil {
		results = []U{}
	}
	return Envelope[U]{
		Total:    env.Total,
		Next:     env.Next,
		Previous: env.Previous,
		Current:  env.Current,
		Results:  results,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(models.MsgInvalidID))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// queryID reads an optional positive id from the query string. An absent
// parameter yields nil; a malformed one writes a 400 response.
func (s *Server) queryID(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(models.MsgInvalidID))
		return nil, errResponseWritten
	}
	v := uint(id)
	return &v, nil
}

// querySourceID reads an optional marketplace id from the query string.
func (s *Server) querySourceID(c *fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(models.MsgInvalidID))
		return nil, errResponseWritten
	}
	return &id, nil
}

// viewer loads the requesting user's reaction sets; anonymous requests get
// feed.Anonymous.
func (s *Server) viewer(c *fiber.Ctx) (feed.Viewer, error) {
	userID, _ := middleware.ViewerID(c)
	return s.reactions.Viewer(c.UserContext(), userID)
}

// currentUserID returns the authenticated viewer. Routes behind AuthRequired
// always have one.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := middleware.ViewerID(c)
	return userID
}
