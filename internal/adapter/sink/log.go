package sink

import (
	"context"
	"log/slog"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

// Log renders notifications as structured log records.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "sink")}
}

func (l *Log) Notify(ctx context.Context, req notification.Request) {
	l.logger.Log(ctx, levelFor(req.Severity), "notification",
		"title", req.Title,
		"description", req.Description,
		"severity", string(req.Severity),
		"duration", req.Duration,
		"position", string(req.Position),
	)
}

func levelFor(s notification.Severity) slog.Level {
	switch s {
	case notification.SeverityError:
		return slog.LevelError
	case notification.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
