package rules

import (
	"context"
	"fmt"

	"sentinel-automod/internal/settings"
	"sentinel-automod/internal/storage"
)

const (
	KeyAnnouncementChannel = "announcement_channel"
	KeyAnnouncementEnabled = "is_announcement_enabled"
)

// Global reads and writes community-wide settings that no single rule owns.
type Global struct {
	cache *settings.Cache
}

func NewGlobal(cache *settings.Cache) *Global {
	return &Global{cache: cache}
}

func (g *Global) AnnouncementChannel(ctx context.Context, guildID string) (string, error) {
	return settings.Get(ctx, g.cache, guildID, storage.GlobalScope, KeyAnnouncementChannel, "")
}

func (g *Global) SetAnnouncementChannel(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("%w: empty channel id", ErrInvalidInput)
	}
	return g.cache.Set(ctx, guildID, storage.GlobalScope, KeyAnnouncementChannel, channelID)
}

func (g *Global) AnnouncementEnabled(ctx context.Context, guildID string) (bool, error) {
	return settings.Get(ctx, g.cache, guildID, storage.GlobalScope, KeyAnnouncementEnabled, false)
}

// SetAnnouncementEnabled returns the previous value.
func (g *Global) SetAnnouncementEnabled(ctx context.Context, guildID string, enabled bool) (bool, error) {
	before, err := g.AnnouncementEnabled(ctx, guildID)
	if err != nil {
		return false, err
	}
	return before, g.cache.Set(ctx, guildID, storage.GlobalScope, KeyAnnouncementEnabled, enabled)
}

// GlobalAnnouncementChannel returns the community channel when global
// announcing is enabled, otherwise "".
func (g *Global) GlobalAnnouncementChannel(ctx context.Context, guildID string) (string, error) {
	enabled, err := g.AnnouncementEnabled(ctx, guildID)
	if err != nil || !enabled {
		return "", err
	}
	return g.AnnouncementChannel(ctx, guildID)
}
