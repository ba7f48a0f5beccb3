package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxCharsRuleName = "MaxCharsRule"
	MaxWordsRuleName = "MaxWordsRule"

	KeyMaxChars = "max_chars"
	KeyMaxWords = "max_words"
)

// lengthLimit is a threshold stored under one key. Zero means unset.
type lengthLimit struct {
	Base
	key string
}

func (l *lengthLimit) Limit(ctx context.Context, guildID string) (int, error) {
	var limit int
	if _, err := l.get(ctx, guildID, l.key, &limit); err != nil {
		return 0, err
	}
	return limit, nil
}

func (l *lengthLimit) SetLimit(ctx context.Context, guildID string, limit int) error {
	if limit < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidInput, l.key)
	}
	return l.set(ctx, guildID, l.key, limit)
}

// MaxCharsRule flags messages with at least the configured number of
// characters.
type MaxCharsRule struct {
	lengthLimit
}

func NewMaxCharsRule(deps Deps) *MaxCharsRule {
	return &MaxCharsRule{lengthLimit{Base: newBase(MaxCharsRuleName, deps), key: KeyMaxChars}}
}

func (r *MaxCharsRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	limit, err := r.Limit(ctx, msg.GuildID)
	if err != nil || limit <= 0 {
		return nil, err
	}
	if count := utf8.RuneCountInString(msg.Content); count >= limit {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("%d characters (limit %d)", count, limit)), nil
	}
	return nil, nil
}

// MaxWordsRule flags messages with at least the configured number of words.
type MaxWordsRule struct {
	lengthLimit
}

func NewMaxWordsRule(deps Deps) *MaxWordsRule {
	return &MaxWordsRule{lengthLimit{Base: newBase(MaxWordsRuleName, deps), key: KeyMaxWords}}
}

func (r *MaxWordsRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	limit, err := r.Limit(ctx, msg.GuildID)
	if err != nil || limit <= 0 {
		return nil, err
	}
	if count := len(strings.Fields(msg.Content)); count >= limit {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("%d words (limit %d)", count, limit)), nil
	}
	return nil, nil
}
