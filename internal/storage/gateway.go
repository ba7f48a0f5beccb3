package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Gateway when no value has been stored for a key.
var ErrNotFound = errors.New("setting not found")

// GlobalScope holds community-wide settings that do not belong to a rule.
const GlobalScope = "settings"

// Gateway is the persistent key/value configuration store. Values are opaque
// encoded blobs keyed by (guild, scope, key) where scope is a rule name or
// GlobalScope.
type Gateway interface {
	GetRaw(ctx context.Context, guildID, scope, key string) ([]byte, error)
	SetRaw(ctx context.Context, guildID, scope, key string, value []byte) error
}

// AuditSink persists audit entries. Only the SQL backends implement it.
type AuditSink interface {
	AddAuditLog(ctx context.Context, log AuditLog) error
	// ListAuditLogs returns a guild's entries since the given time, newest first.
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error)
	CleanupAuditLogs(ctx context.Context, retentionDays int) error
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Rule      string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}
