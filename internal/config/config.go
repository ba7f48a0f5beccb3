package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string          `yaml:"discord_token"`
	LogLevel     string          `yaml:"log_level"`
	Storage      StorageConfig   `yaml:"storage"`
	Cache        CacheConfig     `yaml:"cache"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Spam         SpamConfig      `yaml:"spam"`
	Export       ExportConfig    `yaml:"export"`
	Actions      ActionConfig    `yaml:"actions"`
	Announce     AnnounceConfig  `yaml:"announce"`
	Audit        AuditConfig     `yaml:"audit"`
	Health       HealthConfig    `yaml:"health"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	RedisURL     string `yaml:"redis_url"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type RateLimitConfig struct {
	UserCapacity         int `yaml:"user_capacity"`
	UserWindowSeconds    int `yaml:"user_window_seconds"`
	ContentCapacity      int `yaml:"content_capacity"`
	ContentWindowSeconds int `yaml:"content_window_seconds"`
	MaxBuckets           int `yaml:"max_buckets"`
}

type SpamConfig struct {
	FlushDelaySeconds int `yaml:"flush_delay_seconds"`
	MaxWaitSeconds    int `yaml:"max_wait_seconds"`
	MaxCollected      int `yaml:"max_collected"`
}

type ExportConfig struct {
	Driver   string `yaml:"driver"`
	PasteURL string `yaml:"paste_url"`
	Dir      string `yaml:"dir"`
}

type ActionConfig struct {
	DefaultAction string `yaml:"default_action"`
	BanDeleteDays int    `yaml:"ban_delete_days"`
	ReasonPrefix  string `yaml:"reason_prefix"`
}

type AnnounceConfig struct {
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Offense int `yaml:"offense"`
	Failure int `yaml:"failure"`
}

type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Driver:       "sqlite",
			DatabasePath: "/data/automod.db",
		},
		Cache: CacheConfig{Size: 4096},
		RateLimit: RateLimitConfig{
			UserCapacity:         10,
			UserWindowSeconds:    12,
			ContentCapacity:      15,
			ContentWindowSeconds: 17,
			MaxBuckets:           50000,
		},
		Spam: SpamConfig{
			FlushDelaySeconds: 300,
			MaxWaitSeconds:    900,
			MaxCollected:      5000,
		},
		Export: ExportConfig{
			Driver: "file",
			Dir:    "/data/exports",
		},
		Actions: ActionConfig{
			DefaultAction: "none",
			BanDeleteDays: 1,
			ReasonPrefix:  "[AutoMod]",
		},
		Announce: AnnounceConfig{
			EmbedColors: EmbedColors{
				Offense: 0xF1C40F,
				Failure: 0xE74C3C,
			},
		},
		Audit:  AuditConfig{RetentionDays: 30},
		Health: HealthConfig{Enabled: false, Addr: ":8080"},
	}
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and normalizes the result.
func Load(path string) (Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return Config{}, err
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// Parse is Load without the token requirement.
func Parse(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.Storage.Driver = normalizeDriver(cfg.Storage.Driver)
	cfg.Export.Driver = normalizeExport(cfg.Export.Driver)
	cfg.Actions.DefaultAction = strings.ToLower(cfg.Actions.DefaultAction)
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 4096
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Storage.Driver = envString("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DatabasePath = envString("DATABASE_PATH", cfg.Storage.DatabasePath)
	cfg.Storage.PostgresDSN = envString("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.RedisURL = envString("REDIS_URL", cfg.Storage.RedisURL)
	cfg.Cache.Size = envInt("CACHE_SIZE", cfg.Cache.Size)
	cfg.RateLimit.UserCapacity = envInt("RATE_USER_CAPACITY", cfg.RateLimit.UserCapacity)
	cfg.RateLimit.UserWindowSeconds = envInt("RATE_USER_WINDOW_SECONDS", cfg.RateLimit.UserWindowSeconds)
	cfg.RateLimit.ContentCapacity = envInt("RATE_CONTENT_CAPACITY", cfg.RateLimit.ContentCapacity)
	cfg.RateLimit.ContentWindowSeconds = envInt("RATE_CONTENT_WINDOW_SECONDS", cfg.RateLimit.ContentWindowSeconds)
	cfg.RateLimit.MaxBuckets = envInt("RATE_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)
	cfg.Spam.FlushDelaySeconds = envInt("SPAM_FLUSH_DELAY_SECONDS", cfg.Spam.FlushDelaySeconds)
	cfg.Spam.MaxWaitSeconds = envInt("SPAM_MAX_WAIT_SECONDS", cfg.Spam.MaxWaitSeconds)
	cfg.Spam.MaxCollected = envInt("SPAM_MAX_COLLECTED", cfg.Spam.MaxCollected)
	cfg.Export.Driver = envString("EXPORT_DRIVER", cfg.Export.Driver)
	cfg.Export.PasteURL = envString("EXPORT_PASTE_URL", cfg.Export.PasteURL)
	cfg.Export.Dir = envString("EXPORT_DIR", cfg.Export.Dir)
	cfg.Actions.DefaultAction = envString("DEFAULT_ACTION", cfg.Actions.DefaultAction)
	cfg.Actions.BanDeleteDays = envInt("BAN_DELETE_DAYS", cfg.Actions.BanDeleteDays)
	cfg.Audit.RetentionDays = envInt("AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Announce.EmbedColors.Offense = envInt("EMBED_COLOR_OFFENSE", cfg.Announce.EmbedColors.Offense)
	cfg.Announce.EmbedColors.Failure = envInt("EMBED_COLOR_FAILURE", cfg.Announce.EmbedColors.Failure)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "redis", "memory":
		return strings.ToLower(value)
	default:
		return "sqlite"
	}
}

func normalizeExport(value string) string {
	switch strings.ToLower(value) {
	case "paste":
		return "paste"
	default:
		return "file"
	}
}
