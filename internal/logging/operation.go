package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Operation represents a timed unit of work, such as a cache sync pass or a
// media ingest.
type Operation struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartOperation enriches the context logger with an operation name and id and
// returns the derived context plus a handle used to log completion.
func StartOperation(ctx context.Context, name string) (context.Context, *Operation) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx).With(
		slog.String("op", name),
		slog.String("op_id", uuid.NewString()),
	)
	ctx = WithLogger(ctx, logger)

	return ctx, &Operation{
		name:   name,
		logger: logger,
		start:  time.Now(),
	}
}

// End emits a completion entry with the elapsed duration. Extra attribute
// pairs are passed through to the log record.
func (o *Operation) End(args ...any) {
	if o == nil {
		return
	}
	args = append(args, slog.Duration("duration", time.Since(o.start)))
	o.logger.Info("operation completed", args...)
}
