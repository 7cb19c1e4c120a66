package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
)

type loggerKey struct{}

// With stores logger on ctx. A nil ctx or logger leaves ctx untouched.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the request- or event-scoped logger, or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}

// Enrich adds fields to the logger already on ctx (or to fallback when there is
// none) and stores the result back on ctx.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) context.Context {
	base := FromOr(ctx, fallback)
	if base == nil || len(fields) == 0 {
		return ctx
	}
	return With(ctx, base.With(fields...))
}
