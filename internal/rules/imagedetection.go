package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentinel-automod/internal/vision"

	"go.uber.org/zap"
)

const (
	ImageDetectionRuleName = "ImageDetectionRule"

	KeyAzureEndpoint = "azure_endpoint"
	KeyAzureKey      = "azure_key"
)

// ImageDetectionRule sends the first attachment to an image classifier and
// flags adult, racy or gory results.
type ImageDetectionRule struct {
	Base
	classifier vision.Classifier
}

func NewImageDetectionRule(deps Deps, classifier vision.Classifier) *ImageDetectionRule {
	return &ImageDetectionRule{Base: newBase(ImageDetectionRuleName, deps), classifier: classifier}
}

func (r *ImageDetectionRule) Endpoint(ctx context.Context, guildID string) (string, error) {
	var endpoint string
	_, err := r.get(ctx, guildID, KeyAzureEndpoint, &endpoint)
	return endpoint, err
}

func (r *ImageDetectionRule) SetEndpoint(ctx context.Context, guildID, endpoint string) error {
	normalized, err := vision.NormalizeEndpoint(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r.set(ctx, guildID, KeyAzureEndpoint, normalized)
}

func (r *ImageDetectionRule) Key(ctx context.Context, guildID string) (string, error) {
	var key string
	_, err := r.get(ctx, guildID, KeyAzureKey, &key)
	return key, err
}

func (r *ImageDetectionRule) SetKey(ctx context.Context, guildID, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidInput)
	}
	return r.set(ctx, guildID, KeyAzureKey, strings.TrimSpace(key))
}

func (r *ImageDetectionRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	if len(msg.Attachments) == 0 || r.classifier == nil {
		return nil, nil
	}
	key, err := r.Key(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	endpoint, err := r.Endpoint(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if key == "" || endpoint == "" {
		r.logger.Warn("image detection enabled without endpoint or key", zap.String("guild_id", msg.GuildID))
		return nil, nil
	}

	analysis, err := r.classifier.Analyze(ctx, endpoint, key, msg.Attachments[0].URL)
	if err != nil {
		if errors.Is(err, vision.ErrRateLimited) {
			r.logger.Warn("rate limited by image classifier, skipping image", zap.String("guild_id", msg.GuildID))
		} else {
			r.logger.Warn("image classification failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		}
		return nil, nil
	}
	if !analysis.Offensive() {
		return nil, nil
	}
	return NewInfraction(r.Name(), msg, describeAnalysis(analysis),
		Field{Name: "Adult Content", Value: boolEmoji(analysis.Adult), Inline: true},
		Field{Name: "Racy Content", Value: boolEmoji(analysis.Racy), Inline: true},
		Field{Name: "Gory Content", Value: boolEmoji(analysis.Gory), Inline: true},
	), nil
}

func describeAnalysis(analysis vision.Analysis) string {
	var b strings.Builder
	if analysis.Caption != "" {
		fmt.Fprintf(&b, "**Image description:**\n`%s`\n\n", analysis.Caption)
	}
	if len(analysis.Tags) > 0 {
		b.WriteString("**Tags:**\n")
		for i, tag := range analysis.Tags {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "`%s`", tag)
		}
	}
	return b.String()
}

func boolEmoji(value bool) string {
	if value {
		return "✅"
	}
	return "❌"
}
