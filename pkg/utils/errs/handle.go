package errs

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and, when Sentry is initialized, reports it there too
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	attrs := []any{"error", err}
	for k, v := range goerr.Values(err) {
		attrs = append(attrs, k, v)
	}
	ctxlog.From(ctx).Error("Error occurred", attrs...)

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			if values := goerr.Values(err); len(values) > 0 {
				scope.SetContext("goerr", sentry.Context(values))
			}
			hub.CaptureException(err)
		})
	}
}

// Flush waits for buffered Sentry events to be sent
func Flush(timeout time.Duration) {
	if sentry.CurrentHub().Client() != nil {
		sentry.Flush(timeout)
	}
}
