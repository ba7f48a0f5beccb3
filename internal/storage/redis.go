package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var redisSettingsPrefix = "automod:"

// RedisGateway keeps one hash per guild, with one field per scope/key pair.
type RedisGateway struct {
	Client *redis.Client
}

var _ Gateway = (*RedisGateway)(nil)

func NewRedis(ctx context.Context, redisURL string) (*RedisGateway, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisGateway{Client: rdb}, nil
}

func (g *RedisGateway) Close() {
	_ = g.Client.Close()
}

func redisField(scope, key string) string {
	return scope + "/" + key
}

func (g *RedisGateway) GetRaw(ctx context.Context, guildID, scope, key string) ([]byte, error) {
	value, err := g.Client.HGet(ctx, redisSettingsPrefix+guildID, redisField(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (g *RedisGateway) SetRaw(ctx context.Context, guildID, scope, key string, value []byte) error {
	return g.Client.HSet(ctx, redisSettingsPrefix+guildID, redisField(scope, key), value).Err()
}
