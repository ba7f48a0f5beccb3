package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	WallSpamRuleName = "WallSpamRule"

	KeyEmptyLineEnabled   = "emptyline_enabled"
	KeyEmptyLineThreshold = "emptyline_threshold"

	DefaultEmptyLineThreshold = 5
	wallTokenMaxLength        = 500
	wallRepeatMax             = 25
)

// WallSpamRule flags walls of repeated text, or runs of empty lines when
// empty-line mode is enabled.
type WallSpamRule struct {
	Base
}

func NewWallSpamRule(deps Deps) *WallSpamRule {
	return &WallSpamRule{Base: newBase(WallSpamRuleName, deps)}
}

func (r *WallSpamRule) EmptyLineEnabled(ctx context.Context, guildID string) (bool, error) {
	var enabled bool
	if _, err := r.get(ctx, guildID, KeyEmptyLineEnabled, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (r *WallSpamRule) SetEmptyLineEnabled(ctx context.Context, guildID string, enabled bool) error {
	return r.set(ctx, guildID, KeyEmptyLineEnabled, enabled)
}

func (r *WallSpamRule) EmptyLineThreshold(ctx context.Context, guildID string) (int, error) {
	threshold := DefaultEmptyLineThreshold
	if _, err := r.get(ctx, guildID, KeyEmptyLineThreshold, &threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}

// SetEmptyLineThreshold requires more than one line so single line breaks are
// never flagged.
func (r *WallSpamRule) SetEmptyLineThreshold(ctx context.Context, guildID string, lines int) error {
	if lines <= 1 {
		return fmt.Errorf("%w: empty line threshold must be greater than 1", ErrInvalidInput)
	}
	return r.set(ctx, guildID, KeyEmptyLineThreshold, lines)
}

func (r *WallSpamRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	emptyLines, err := r.EmptyLineEnabled(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if emptyLines {
		threshold, err := r.EmptyLineThreshold(ctx, msg.GuildID)
		if err != nil {
			return nil, err
		}
		if IsEmptyLineSpam(msg.Content, threshold) {
			return NewInfraction(r.Name(), msg, ""), nil
		}
		return nil, nil
	}
	if IsWallText(msg.Content) {
		return NewInfraction(r.Name(), msg, ""), nil
	}
	return nil, nil
}

// IsWallText reports whether the first word is a wall on its own, or appears
// too often across all words.
func IsWallText(content string) bool {
	tokens := strings.Fields(content)
	if len(tokens) == 0 {
		return false
	}
	first := tokens[0]
	if utf8.RuneCountInString(first) > wallTokenMaxLength {
		return true
	}
	repeats := 0
	for _, token := range tokens {
		repeats += strings.Count(token, first)
	}
	return repeats > wallRepeatMax
}

func IsEmptyLineSpam(content string, threshold int) bool {
	if threshold <= 1 {
		threshold = DefaultEmptyLineThreshold
	}
	return strings.Contains(content, strings.Repeat("\n", threshold))
}
