package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rule_settings (
	guild_id TEXT NOT NULL,
	scope TEXT NOT NULL,
	key TEXT NOT NULL,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (guild_id, scope, key)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	guild_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	rule TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL,
	event TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresGateway stores settings in Postgres for deployments that share one
// configuration database between several bot processes.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

var (
	_ Gateway   = (*PostgresGateway)(nil)
	_ AuditSink = (*PostgresGateway)(nil)
)

func NewPostgres(ctx context.Context, dsn string) (*PostgresGateway, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresGateway{pool: pool}, nil
}

func (g *PostgresGateway) Migrate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, postgresSchema)
	return err
}

func (g *PostgresGateway) Close() {
	g.pool.Close()
}

func (g *PostgresGateway) GetRaw(ctx context.Context, guildID, scope, key string) ([]byte, error) {
	var value []byte
	err := g.pool.QueryRow(ctx, `
		SELECT value FROM rule_settings
		WHERE guild_id = $1 AND scope = $2 AND key = $3
	`, guildID, scope, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (g *PostgresGateway) SetRaw(ctx context.Context, guildID, scope, key string, value []byte) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO rule_settings (guild_id, scope, key, value, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (guild_id, scope, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, guildID, scope, key, value)
	return err
}

func (g *PostgresGateway) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, rule, level, event, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, log.GuildID, log.UserID, log.Rule, log.Level, log.Event, log.Details, log.CreatedAt)
	return err
}

func (g *PostgresGateway) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, guild_id, user_id, rule, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, guildID, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[AuditLog])
}

func (g *PostgresGateway) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := g.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	return err
}
