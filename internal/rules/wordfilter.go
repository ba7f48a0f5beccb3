package rules

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	WordFilterRuleName = "WordFilterRule"

	KeyWords = "words"
)

var (
	mentionTokenRE = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)
	punctuationRE  = regexp.MustCompile(`[\p{P}\p{S}]`)
)

// FilteredWord is one filter entry. An empty channel list applies everywhere.
type FilteredWord struct {
	Word     string   `json:"word"`
	Cleaned  bool     `json:"is_cleaned"`
	Channels []string `json:"channels,omitempty"`
}

func (w FilteredWord) appliesTo(channelID string) bool {
	return len(w.Channels) == 0 || slices.Contains(w.Channels, channelID)
}

type WordFilterRule struct {
	Base
}

func NewWordFilterRule(deps Deps) *WordFilterRule {
	return &WordFilterRule{Base: newBase(WordFilterRuleName, deps)}
}

// Words lists the filter entries in insertion order.
func (r *WordFilterRule) Words(ctx context.Context, guildID string) ([]FilteredWord, error) {
	var words []FilteredWord
	if _, err := r.get(ctx, guildID, KeyWords, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// AddWord stores word exactly as given. cleaned strips punctuation and
// mentions from messages before matching.
func (r *WordFilterRule) AddWord(ctx context.Context, guildID, word string, channels []string, cleaned bool) (FilteredWord, error) {
	if strings.TrimSpace(word) == "" {
		return FilteredWord{}, fmt.Errorf("%w: empty word", ErrInvalidInput)
	}
	words, err := r.Words(ctx, guildID)
	if err != nil {
		return FilteredWord{}, err
	}
	if slices.ContainsFunc(words, func(w FilteredWord) bool { return w.Word == word }) {
		return FilteredWord{}, fmt.Errorf("word %q: %w", word, ErrAlreadyExists)
	}
	entry := FilteredWord{Word: word, Cleaned: cleaned, Channels: dedupe(channels)}
	if err := r.set(ctx, guildID, KeyWords, append(slices.Clone(words), entry)); err != nil {
		return FilteredWord{}, err
	}
	return entry, nil
}

func (r *WordFilterRule) RemoveWord(ctx context.Context, guildID, word string) error {
	words, err := r.Words(ctx, guildID)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(words, func(w FilteredWord) bool { return w.Word == word })
	if idx < 0 {
		return fmt.Errorf("word %q: %w", word, ErrNotFound)
	}
	return r.set(ctx, guildID, KeyWords, slices.Delete(slices.Clone(words), idx, idx+1))
}

func (r *WordFilterRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	words, err := r.Words(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if entry, ok := MatchWord(words, msg.ChannelID, msg.Content); ok {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("Filtered word found: `%s`", entry.Word)), nil
	}
	return nil, nil
}

// MatchWord returns the first entry scoped to channelID whose word is a
// case-sensitive substring of content.
func MatchWord(words []FilteredWord, channelID, content string) (FilteredWord, bool) {
	var cleaned string
	cleanedReady := false
	for _, entry := range words {
		if !entry.appliesTo(channelID) {
			continue
		}
		text := content
		if entry.Cleaned {
			if !cleanedReady {
				cleaned = CleanContent(content)
				cleanedReady = true
			}
			text = cleaned
		}
		if strings.Contains(text, entry.Word) {
			return entry, true
		}
	}
	return FilteredWord{}, false
}

// CleanContent drops mention tokens and turns punctuation into spaces, so
// "b.ake" never matches "bake".
func CleanContent(content string) string {
	content = mentionTokenRE.ReplaceAllString(content, " ")
	return punctuationRE.ReplaceAllString(content, " ")
}
