package middleware

import (
	"context"
	"log/slog"
	"time"

	"staysettle/internal/app/commands"
	"staysettle/internal/domain/shared/fault"
)

// Logging records the outcome and duration of every command.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		if logger == nil {
			return nextFn
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			switch {
			case err == nil:
				logger.DebugContext(ctx, "command handled", attrs...)
			case fault.KindOf(err) != nil:
				logger.InfoContext(ctx, "command rejected", append(attrs, "code", fault.Code(err), "error", err)...)
			default:
				logger.ErrorContext(ctx, "command failed", append(attrs, "error", err)...)
			}
			return res, err
		})
	}
}
