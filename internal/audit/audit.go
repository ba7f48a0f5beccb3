// Package audit records handled infractions in the audit log table and the
// structured log.
package audit

import (
	"context"
	"fmt"
	"time"

	"sentinel-automod/internal/events"
	"sentinel-automod/internal/rules"
	"sentinel-automod/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Logger struct {
	sink   storage.AuditSink
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	now    func() time.Time
}

// NewLogger accepts a nil sink for backends without an audit table.
func NewLogger(sink storage.AuditSink, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sink: sink, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, rule, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Rule:      rule,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.sink != nil {
		if err := l.sink.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("write audit log", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("rule", rule),
		zap.String("event", event),
		zap.String("details", details),
	)
}

// HandleEvent is an events.Handler for the generic automod event.
func (l *Logger) HandleEvent(ctx context.Context, event events.Event) {
	details := fmt.Sprintf("action=%s succeeded=%t deleted=%t message=%s channel=%s",
		event.Action, event.ActionSucceeded, event.MessageDeleted, event.MessageID, event.ChannelID)
	if event.Infraction != nil {
		details += " infraction=" + event.Infraction.ID.String()
	}
	l.Log(ctx, levelFor(event), event.GuildID, event.AuthorID, event.Rule, event.Name, details)
}

func levelFor(event events.Event) string {
	switch {
	case !event.ActionSucceeded:
		return LevelWarn
	case event.Action == rules.ActionBan || event.Action == rules.ActionKick:
		return LevelCrit
	default:
		return LevelInfo
	}
}
