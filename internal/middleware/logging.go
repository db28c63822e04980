package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the request-scoped structured logger. Records written with a
// request context carry its request, viewer and trace ids.
var Logger = slog.New(&requestHandler{Handler: newBaseHandler(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))})

type ctxKey int

const (
	requestIDKey ctxKey = iota
	viewerIDKey
	traceIDKey
)

// newBaseHandler logs JSON in production and text elsewhere.
func newBaseHandler(env, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if env == "production" || env == "prod" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

type requestHandler struct {
	slog.Handler
}

func (h *requestHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, ok := ctx.Value(viewerIDKey).(uint); ok {
		r.AddAttrs(slog.Uint64("viewer_id", uint64(id)))
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h *requestHandler) WithGroup(name string) slog.Handler {
	return &requestHandler{h.Handler.WithGroup(name)}
}

// ContextMiddleware moves request, viewer and trace ids from fiber locals
// into the user context, where services and repositories can log them.
// It must run after requestid and tracing, and before auth sets the viewer.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, requestIDKey, id)
		}
		if id, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, traceIDKey, id)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// withViewer records the authenticated viewer on the request context.
func withViewer(c *fiber.Ctx, userID uint) {
	c.SetUserContext(context.WithValue(c.UserContext(), viewerIDKey, userID))
}

// StructuredLogger logs one record per request. Probe and scrape paths are
// skipped; 5xx responses log at error and 4xx at warn.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/health/") || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", path),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Int("bytes", len(c.Response().Body())),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		ctx := c.UserContext()
		switch {
		case err != nil:
			Logger.ErrorContext(ctx, "request failed", append(attrs, slog.String("error", err.Error()))...)
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "request failed", attrs...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", attrs...)
		default:
			Logger.InfoContext(ctx, "request served", attrs...)
		}
		return err
	}
}
