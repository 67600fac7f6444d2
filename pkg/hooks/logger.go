// Package hooks provides event consumers for the run pipeline: structured
// logging, Prometheus metrics and OpenTelemetry traces.
package hooks

import (
	"context"
	"log/slog"

	"github.com/promptstrike/promptstrike/pkg/dispatcher"
	"github.com/promptstrike/promptstrike/pkg/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*LoggerHook)(nil)

// LoggerHook writes every run event to a structured logger.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a logging hook. A nil logger falls back to
// slog.Default().
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerHook{logger: logger}
}

// EventTypes returns nil: the logger receives everything.
func (h *LoggerHook) EventTypes() []events.Type { return nil }

// OnEvent logs the event with fields appropriate to its type.
func (h *LoggerHook) OnEvent(ctx context.Context, event events.Event) error {
	log := h.logger.With(slog.String("run_id", event.RunID()))

	switch e := event.(type) {
	case events.StartEvent:
		log.InfoContext(ctx, "test run started",
			slog.String("project_id", e.ProjectID),
			slog.String("target", e.TargetURL),
			slog.Int("total_payloads", e.TotalPayloads),
			slog.Bool("dry_run", e.DryRun))
	case events.ResultEvent:
		log.DebugContext(ctx, "payload result",
			slog.String("payload_id", e.PayloadID),
			slog.String("category", e.Category.String()),
			slog.Bool("success", e.Success),
			slog.Float64("confidence", e.Confidence),
			slog.Int("status_code", e.StatusCode))
	case events.ProgressEvent:
		log.DebugContext(ctx, "run progress",
			slog.Int("completed", e.Completed),
			slog.Int("total", e.Total),
			slog.Int("successful", e.Successful))
	case events.FindingEvent:
		log.WarnContext(ctx, "finding created",
			slog.String("finding_id", e.FindingID),
			slog.String("category", e.Category.String()),
			slog.String("severity", e.Severity.String()),
			slog.String("title", e.Title))
	case events.ErrorEvent:
		if e.Fatal {
			log.ErrorContext(ctx, "run failed", slog.String("error", e.Message))
		} else {
			log.WarnContext(ctx, "payload error",
				slog.String("payload_id", e.PayloadID),
				slog.String("error", e.Message))
		}
	case events.CompleteEvent:
		log.InfoContext(ctx, "test run finished",
			slog.String("status", e.Status),
			slog.Int("completed", e.Completed),
			slog.Int("successful", e.Successful),
			slog.Duration("duration", e.Duration))
	}
	return nil
}
