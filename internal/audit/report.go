package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNoAuditStore is returned by queries when the storage backend keeps no
// audit table.
var ErrNoAuditStore = errors.New("audit log storage is not available")

type Report struct {
	Total   int
	ByLevel map[string]int
	ByRule  map[string]int
}

func (l *Logger) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	if l.sink == nil {
		return Report{}, ErrNoAuditStore
	}
	logs, err := l.sink.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByRule: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		if log.Rule != "" {
			report.ByRule[log.Rule]++
		}
	}
	return report, nil
}

// RunRetention deletes entries older than retentionDays every interval until
// ctx is done. It returns immediately without a store or with retention off.
func (l *Logger) RunRetention(ctx context.Context, interval time.Duration, retentionDays int) {
	if l.sink == nil || retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := l.sink.CleanupAuditLogs(ctx, retentionDays); err != nil && ctx.Err() == nil {
			l.logger.Warn("audit log cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
