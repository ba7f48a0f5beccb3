package automod

import (
	"context"
	"fmt"
	"time"

	"sentinel-automod/internal/platform"
	"sentinel-automod/internal/rules"

	"go.uber.org/zap"
)

// Router resolves where announcements go and sends them. Delivery is best
// effort: failures are logged and never returned.
type Router struct {
	client   platform.Client
	global   *rules.Global
	registry *rules.Registry
	colors   Colors
	logger   *zap.Logger
	now      func() time.Time
}

var _ rules.ExportNotifier = (*Router)(nil)

func NewRouter(client platform.Client, global *rules.Global, registry *rules.Registry, colors Colors, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		client:   client,
		global:   global,
		registry: registry,
		colors:   colors,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveChannel picks the rule-specific channel, then the community channel
// when global announcing is enabled. "" means do not announce.
func (r *Router) ResolveChannel(ctx context.Context, guildID string, s rules.Settings) (string, error) {
	if s.AnnounceChannelID != "" {
		return s.AnnounceChannelID, nil
	}
	return r.global.GlobalAnnouncementChannel(ctx, guildID)
}

func (r *Router) Announce(ctx context.Context, s rules.Settings, inf *rules.Infraction, outcome Outcome) {
	logger := r.logger.With(zap.String("rule", inf.Rule), zap.String("guild_id", inf.Message.GuildID))

	channelID, err := r.ResolveChannel(ctx, inf.Message.GuildID, s)
	if err != nil {
		logger.Warn("resolve announcement channel", zap.Error(err))
		announcementCount.WithLabelValues("failure").Inc()
		return
	}
	if channelID == "" {
		announcementCount.WithLabelValues("skipped").Inc()
		return
	}

	embed := BuildEmbed(inf, outcome, r.colors, r.now())
	if err := r.client.SendEmbed(ctx, channelID, embed); err != nil {
		logger.Warn("send announcement", zap.String("channel_id", channelID), zap.Error(err))
		announcementCount.WithLabelValues("failure").Inc()
		return
	}
	announcementCount.WithLabelValues("success").Inc()
}

// AnnounceExport posts the offender export reference through the rule's
// announcement route.
func (r *Router) AnnounceExport(ctx context.Context, ruleName, guildID, reference string, total int) {
	logger := r.logger.With(zap.String("rule", ruleName), zap.String("guild_id", guildID))

	var s rules.Settings
	if rule, ok := r.registry.Get(ruleName); ok {
		resolved, err := rule.Settings(ctx, guildID)
		if err != nil {
			logger.Warn("load rule settings for export announcement", zap.Error(err))
		} else {
			s = resolved
		}
	}
	channelID, err := r.ResolveChannel(ctx, guildID, s)
	if err != nil {
		logger.Warn("resolve announcement channel", zap.Error(err))
		return
	}
	if channelID == "" {
		logger.Info("offender export not announced, no channel configured", zap.String("reference", reference))
		return
	}
	content := fmt.Sprintf("ID's found during most recent spamrule encounter (%d total): %s", total, reference)
	if err := r.client.SendMessage(ctx, channelID, content, nil); err != nil {
		logger.Warn("send export announcement", zap.String("channel_id", channelID), zap.Error(err))
	}
}
