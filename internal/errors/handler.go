package errors

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/minibank/pkg/logger"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// Handler is the last stop for errors that reach a front-end. It logs them,
// forwards severe ones to Sentry and returns the text to show the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var appErr *AppError
	if !As(err, &appErr) || appErr == nil {
		appErr = &AppError{Code: "E000", Message: err.Error(), Severity: SeverityHigh}
	}

	args := []any{
		slog.String("code", appErr.Code),
		slog.String("error", err.Error()),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		args = append(args, slog.String("correlation_id", correlationID))
	}

	metrics.RecordError(appErr.Code, string(appErr.Severity))

	switch appErr.Severity {
	case SeverityLow:
		h.log.InfoContext(ctx, "request rejected", args...)
	case SeverityMedium:
		h.log.WarnContext(ctx, "application error", args...)
	default:
		h.log.ErrorContext(ctx, "application error", args...)
		if h.sentryEnabled {
			h.sendToSentry(err, appErr)
		}
	}

	return UserMessage(err), appErr.Retryable
}

func (h *Handler) sendToSentry(err error, appErr *AppError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		sentry.CaptureException(err)
	})
}
