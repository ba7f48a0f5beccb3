package rules

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/idna"
)

const (
	DiscordInviteRuleName = "DiscordInviteRule"

	KeyAllowedLinks = "allowed_links"
)

var linkRE = regexp.MustCompile(`(?i)^<?(?:https?://)?(?:www\.)?([^/\s<>]+)/(\S+)`)

var inviteHosts = map[string]bool{
	"discord.gg": true,
	"discord.io": true,
	"discord.me": true,
	"discord.li": true,
}

var invitePathHosts = map[string]bool{
	"discord.com":    true,
	"discordapp.com": true,
}

// DiscordInviteRule flags invite links that are not explicitly allowed.
type DiscordInviteRule struct {
	Base
}

func NewDiscordInviteRule(deps Deps) *DiscordInviteRule {
	return &DiscordInviteRule{Base: newBase(DiscordInviteRuleName, deps)}
}

func (r *DiscordInviteRule) AllowedLinks(ctx context.Context, guildID string) ([]string, error) {
	var links []string
	if _, err := r.get(ctx, guildID, KeyAllowedLinks, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *DiscordInviteRule) AddAllowedLink(ctx context.Context, guildID, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("%w: empty link", ErrInvalidInput)
	}
	links, err := r.AllowedLinks(ctx, guildID)
	if err != nil {
		return err
	}
	if slices.Contains(links, link) {
		return fmt.Errorf("link %q: %w", link, ErrAlreadyExists)
	}
	return r.set(ctx, guildID, KeyAllowedLinks, append(slices.Clone(links), link))
}

func (r *DiscordInviteRule) RemoveAllowedLink(ctx context.Context, guildID, link string) error {
	links, err := r.AllowedLinks(ctx, guildID)
	if err != nil {
		return err
	}
	idx := slices.Index(links, link)
	if idx < 0 {
		return fmt.Errorf("link %q is not in the allowed list: %w", link, ErrNotFound)
	}
	return r.set(ctx, guildID, KeyAllowedLinks, slices.Delete(slices.Clone(links), idx, idx+1))
}

func (r *DiscordInviteRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	allowed, err := r.AllowedLinks(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if link, ok := FindInvite(msg.Content, allowed); ok {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("Invite link found: `%s`", link)), nil
	}
	return nil, nil
}

// FindInvite returns the first whitespace-separated token that is an invite
// link and not in allowed.
func FindInvite(content string, allowed []string) (string, bool) {
	for _, token := range strings.Fields(content) {
		if slices.Contains(allowed, token) {
			continue
		}
		if IsInviteLink(token) {
			return token, true
		}
	}
	return "", false
}

// IsInviteLink matches invite hosts after IDNA folding, so full-width or
// mixed-case lookalikes of the host are caught too.
func IsInviteLink(token string) bool {
	match := linkRE.FindStringSubmatch(token)
	if match == nil {
		return false
	}
	host := foldHost(match[1])
	if inviteHosts[host] {
		return true
	}
	return invitePathHosts[host] && strings.HasPrefix(strings.ToLower(match[2]), "invite/")
}

func foldHost(host string) string {
	folded, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(folded)
}
