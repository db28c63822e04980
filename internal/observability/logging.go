// Package observability provides background-job logging, feed metrics and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Logger writes records that have no request behind them: background jobs and
// moderation audit lines.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

type jobIDKey struct{}

// Job is one background operation. Every record it writes carries the same job id.
type Job struct {
	logger  *slog.Logger
	started time.Time
}

// StartJob tags ctx with a fresh job id and logs the start of operation.
func StartJob(ctx context.Context, operation string, attrs ...any) (context.Context, *Job) {
	id := uuid.NewString()
	ctx = context.WithValue(ctx, jobIDKey{}, id)

	j := &Job{
		logger:  Logger.With(append([]any{slog.String("job", operation), slog.String("job_id", id)}, attrs...)...),
		started: time.Now(),
	}
	j.logger.DebugContext(ctx, "job started")
	return ctx, j
}

// JobID returns the id of the job running under ctx, or "".
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}

// Done logs a successful finish.
func (j *Job) Done(ctx context.Context) {
	j.logger.InfoContext(ctx, "job finished", slog.Duration("took", time.Since(j.started)))
}

// Fail logs err.
func (j *Job) Fail(ctx context.Context, err error) {
	j.logger.ErrorContext(ctx, "job failed",
		slog.Duration("took", time.Since(j.started)),
		slog.String("error", err.Error()),
	)
}
