package rules

import (
	"context"
	"fmt"
	"regexp"
	"slices"
)

const (
	MentionSpamRuleName = "MentionSpamRule"

	KeyMentionThreshold = "mention_threshold"
	KeyAllowedMentions  = "allowed_mentions"

	DefaultMentionThreshold = 4
)

var userMentionRE = regexp.MustCompile(`<@!?(\d+)>`)

type MentionSpamRule struct {
	Base
}

func NewMentionSpamRule(deps Deps) *MentionSpamRule {
	return &MentionSpamRule{Base: newBase(MentionSpamRuleName, deps)}
}

func (r *MentionSpamRule) Threshold(ctx context.Context, guildID string) (int, error) {
	threshold := DefaultMentionThreshold
	if _, err := r.get(ctx, guildID, KeyMentionThreshold, &threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}

func (r *MentionSpamRule) SetThreshold(ctx context.Context, guildID string, threshold int) error {
	if threshold < 1 {
		return fmt.Errorf("%w: mention threshold must be at least 1", ErrInvalidInput)
	}
	return r.set(ctx, guildID, KeyMentionThreshold, threshold)
}

func (r *MentionSpamRule) AllowedMentions(ctx context.Context, guildID string) ([]string, error) {
	var allowed []string
	if _, err := r.get(ctx, guildID, KeyAllowedMentions, &allowed); err != nil {
		return nil, err
	}
	return allowed, nil
}

func (r *MentionSpamRule) AddAllowedMention(ctx context.Context, guildID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	allowed, err := r.AllowedMentions(ctx, guildID)
	if err != nil {
		return err
	}
	if slices.Contains(allowed, userID) {
		return fmt.Errorf("mention %s: %w", userID, ErrAlreadyExists)
	}
	return r.set(ctx, guildID, KeyAllowedMentions, append(slices.Clone(allowed), userID))
}

func (r *MentionSpamRule) RemoveAllowedMention(ctx context.Context, guildID, userID string) error {
	allowed, err := r.AllowedMentions(ctx, guildID)
	if err != nil {
		return err
	}
	idx := slices.Index(allowed, userID)
	if idx < 0 {
		return fmt.Errorf("mention %s: %w", userID, ErrNotFound)
	}
	return r.set(ctx, guildID, KeyAllowedMentions, slices.Delete(slices.Clone(allowed), idx, idx+1))
}

func (r *MentionSpamRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	threshold, err := r.Threshold(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	allowed, err := r.AllowedMentions(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	exclude := append(slices.Clone(allowed), msg.AuthorID)
	exclude = append(exclude, msg.BotMentions...)
	if count := CountMentions(msg.Content, exclude); count >= threshold {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("%d users mentioned", count)), nil
	}
	return nil, nil
}

// CountMentions counts distinct user mentions in content, ignoring exclude.
func CountMentions(content string, exclude []string) int {
	seen := make(map[string]struct{})
	for _, match := range userMentionRE.FindAllStringSubmatch(content, -1) {
		id := match[1]
		if slices.Contains(exclude, id) {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen)
}
