package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sentinel-automod/internal/rules"
)

type limiter interface {
	rules.Rule
	Limit(ctx context.Context, guildID string) (int, error)
	SetLimit(ctx context.Context, guildID string, limit int) error
}

// ruleAs fetches a registered rule by name and asserts its concrete type.
func ruleAs[T rules.Rule](a *Admin, name string) (T, error) {
	var zero T
	rule, ok := a.registry.Get(name)
	if !ok {
		return zero, fmt.Errorf("%s is not registered: %w", name, rules.ErrNotFound)
	}
	target, ok := rule.(T)
	if !ok {
		return zero, fmt.Errorf("rule %s does not support this command: %w", rule.Name(), rules.ErrInvalidInput)
	}
	return target, nil
}

func (a *Admin) AddWord(ctx context.Context, guildID, word, channelText string, cleaned bool) (string, error) {
	rule, err := ruleAs[*rules.WordFilterRule](a, rules.WordFilterRuleName)
	if err != nil {
		return "", err
	}
	entry, err := rule.AddWord(ctx, guildID, word, parseChannels(channelText), cleaned)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Filtering %s.", describeWord(entry)), nil
}

func (a *Admin) RemoveWord(ctx context.Context, guildID, word string) (string, error) {
	rule, err := ruleAs[*rules.WordFilterRule](a, rules.WordFilterRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.RemoveWord(ctx, guildID, word); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` is no longer filtered.", word), nil
}

func (a *Admin) Words(ctx context.Context, guildID string) (string, error) {
	rule, err := ruleAs[*rules.WordFilterRule](a, rules.WordFilterRuleName)
	if err != nil {
		return "", err
	}
	words, err := rule.Words(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "No words are filtered.", nil
	}
	lines := make([]string, 0, len(words))
	for _, word := range words {
		lines = append(lines, describeWord(word))
	}
	return strings.Join(lines, "\n"), nil
}

func describeWord(word rules.FilteredWord) string {
	out := fmt.Sprintf("`%s`", word.Word)
	if word.Cleaned {
		out += " (cleaned)"
	}
	return out + " in " + orNone(channelMentions(word.Channels), "every channel")
}

// AddExtensions stores an allow or deny entry. Extensions are separated by
// spaces or commas.
func (a *Admin) AddExtensions(ctx context.Context, guildID string, allow bool, extensionText, channelText string) (string, error) {
	rule, err := ruleAs[*rules.AllowedExtensionsRule](a, rules.AllowedExtensionsRuleName)
	if err != nil {
		return "", err
	}
	add, list := rule.AddDenied, "deny"
	if allow {
		add, list = rule.AddAllowed, "allow"
	}
	entry, err := add(ctx, guildID, splitList(extensionText), parseChannels(channelText))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %s to the %s list.", describeExtensions(entry), list), nil
}

// RemoveExtensions deletes the entry at a one-based position, as shown by
// the extensions list command.
func (a *Admin) RemoveExtensions(ctx context.Context, guildID string, allow bool, position int) (string, error) {
	rule, err := ruleAs[*rules.AllowedExtensionsRule](a, rules.AllowedExtensionsRuleName)
	if err != nil {
		return "", err
	}
	remove, list := rule.DeleteDenied, "deny"
	if allow {
		remove, list = rule.DeleteAllowed, "allow"
	}
	removed, err := remove(ctx, guildID, position-1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %s from the %s list.", describeExtensions(removed), list), nil
}

func (a *Admin) Extensions(ctx context.Context, guildID string) (string, error) {
	rule, err := ruleAs[*rules.AllowedExtensionsRule](a, rules.AllowedExtensionsRuleName)
	if err != nil {
		return "", err
	}
	allowed, err := rule.AllowedEntries(ctx, guildID)
	if err != nil {
		return "", err
	}
	denied, err := rule.DeniedEntries(ctx, guildID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, list := range []struct {
		title   string
		entries []rules.ExtensionEntry
	}{{"Allowed", allowed}, {"Denied", denied}} {
		fmt.Fprintf(&b, "**%s**\n", list.title)
		if len(list.entries) == 0 {
			b.WriteString("none\n")
		}
		for i, entry := range list.entries {
			fmt.Fprintf(&b, "%d. %s\n", i+1, describeExtensions(entry))
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func describeExtensions(entry rules.ExtensionEntry) string {
	return fmt.Sprintf("`%s` in %s", strings.Join(entry.Extensions, ", "), orNone(channelMentions(entry.Channels), "every channel"))
}

func (a *Admin) AllowInvite(ctx context.Context, guildID, link string) (string, error) {
	rule, err := ruleAs[*rules.DiscordInviteRule](a, rules.DiscordInviteRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.AddAllowedLink(ctx, guildID, link); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` is now allowed.", strings.TrimSpace(link)), nil
}

func (a *Admin) RemoveInvite(ctx context.Context, guildID, link string) (string, error) {
	rule, err := ruleAs[*rules.DiscordInviteRule](a, rules.DiscordInviteRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.RemoveAllowedLink(ctx, guildID, link); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` is no longer allowed.", link), nil
}

func (a *Admin) Invites(ctx context.Context, guildID string) (string, error) {
	rule, err := ruleAs[*rules.DiscordInviteRule](a, rules.DiscordInviteRuleName)
	if err != nil {
		return "", err
	}
	links, err := rule.AllowedLinks(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "No invite links are allowed.", nil
	}
	return "Allowed invites:\n" + strings.Join(links, "\n"), nil
}

func (a *Admin) SetMentionThreshold(ctx context.Context, guildID string, threshold int) (string, error) {
	rule, err := ruleAs[*rules.MentionSpamRule](a, rules.MentionSpamRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetThreshold(ctx, guildID, threshold); err != nil {
		return "", err
	}
	return fmt.Sprintf("Messages with %d or more mentions will be flagged.", threshold), nil
}

func (a *Admin) AllowMention(ctx context.Context, guildID, userID string) (string, error) {
	rule, err := ruleAs[*rules.MentionSpamRule](a, rules.MentionSpamRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.AddAllowedMention(ctx, guildID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Mentions of <@%s> no longer count.", userID), nil
}

func (a *Admin) RemoveMention(ctx context.Context, guildID, userID string) (string, error) {
	rule, err := ruleAs[*rules.MentionSpamRule](a, rules.MentionSpamRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.RemoveAllowedMention(ctx, guildID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Mentions of <@%s> count again.", userID), nil
}

// SetLimit updates MaxCharsRule or MaxWordsRule.
func (a *Admin) SetLimit(ctx context.Context, guildID, ruleName string, limit int) (string, error) {
	rule, err := ruleAs[limiter](a, ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetLimit(ctx, guildID, limit); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s limit set to %d.", rule.Name(), limit), nil
}

func (a *Admin) SetEmptyLine(ctx context.Context, guildID string, enabled bool) (string, error) {
	rule, err := ruleAs[*rules.WallSpamRule](a, rules.WallSpamRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetEmptyLineEnabled(ctx, guildID, enabled); err != nil {
		return "", err
	}
	if enabled {
		return "WallSpamRule now flags runs of empty lines instead of walls of text.", nil
	}
	return "WallSpamRule now flags walls of text.", nil
}

func (a *Admin) SetEmptyLineThreshold(ctx context.Context, guildID string, lines int) (string, error) {
	rule, err := ruleAs[*rules.WallSpamRule](a, rules.WallSpamRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetEmptyLineThreshold(ctx, guildID, lines); err != nil {
		return "", err
	}
	return fmt.Sprintf("Runs of %d or more empty lines will be flagged.", lines), nil
}

func (a *Admin) SetImageEndpoint(ctx context.Context, guildID, endpoint string) (string, error) {
	rule, err := ruleAs[*rules.ImageDetectionRule](a, rules.ImageDetectionRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetEndpoint(ctx, guildID, endpoint); err != nil {
		return "", err
	}
	stored, err := rule.Endpoint(ctx, guildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Image analysis endpoint set to <%s>.", stored), nil
}

// SetImageKey never echoes the key back.
func (a *Admin) SetImageKey(ctx context.Context, guildID, key string) (string, error) {
	rule, err := ruleAs[*rules.ImageDetectionRule](a, rules.ImageDetectionRuleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetKey(ctx, guildID, key); err != nil {
		return "", err
	}
	return "Image analysis key updated.", nil
}

func splitList(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

// parseChannels accepts channel mentions or raw ids.
func parseChannels(text string) []string {
	fields := splitList(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if id := strings.TrimSuffix(strings.TrimPrefix(field, "<#"), ">"); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func parseInt(values map[string]string, name string) (int, error) {
	n, err := strconv.Atoi(values[name])
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", rules.ErrInvalidInput, name)
	}
	return n, nil
}

func parseBool(values map[string]string, name string) (bool, error) {
	v, err := strconv.ParseBool(values[name])
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", rules.ErrInvalidInput, name)
	}
	return v, nil
}

func channelMentions(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, "<#"+id+">")
	}
	return strings.Join(out, ", ")
}

func roleMentions(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, "<@&"+id+">")
	}
	return strings.Join(out, ", ")
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func orNone(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}
