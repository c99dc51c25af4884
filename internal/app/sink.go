package app

import (
	"context"
	"log/slog"

	"github.com/mrcode/glucose-widget/internal/models"
)

// LogSink renders views as log lines, for headless runs
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Render logs the view
func (s *LogSink) Render(ctx context.Context, view View) error {
	attrs := []slog.Attr{
		slog.String("value", view.Record.Last),
		slog.String("unit", view.Unit),
		slog.String("delta", view.Record.Delta),
		slog.String("trend", models.DirectionGlyph(view.Record.Trend)),
		slog.String("state", view.State),
	}
	if view.ShowAge {
		attrs = append(attrs, slog.Int("age_min", view.Record.AgeMinutes))
	}

	if view.Error != "" {
		attrs = append(attrs, slog.String("error", view.Error))
		s.logger.LogAttrs(ctx, slog.LevelWarn, "glucose", attrs...)
		return nil
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "glucose", attrs...)
	return nil
}
