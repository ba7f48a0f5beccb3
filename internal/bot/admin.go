package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sentinel-automod/internal/audit"
	"sentinel-automod/internal/rules"
)

// configurable is the admin surface every rule gets from rules.Base.
type configurable interface {
	rules.Rule
	SetEnabled(ctx context.Context, guildID string, enabled bool) (bool, error)
	SetAction(ctx context.Context, guildID string, action rules.Action) error
	ToggleDeleteOnOffense(ctx context.Context, guildID string) (bool, bool, error)
	AddWhitelistRole(ctx context.Context, guildID, roleID string) error
	RemoveWhitelistRole(ctx context.Context, guildID, roleID string) error
	SetMuteRole(ctx context.Context, guildID, roleID string) (string, error)
	SetNotifyRole(ctx context.Context, guildID, roleID string) error
	SetEnforcedChannels(ctx context.Context, guildID string, channels []string) ([]string, error)
	ClearEnforcedChannels(ctx context.Context, guildID string) error
	SetAnnounceChannel(ctx context.Context, guildID, channelID string) error
	ClearAnnounceChannel(ctx context.Context, guildID string) error
}

type reporter interface {
	Report(ctx context.Context, guildID string, since time.Time) (audit.Report, error)
}

const reportWindow = 24 * time.Hour

// Admin applies configuration commands and renders their replies.
type Admin struct {
	registry *rules.Registry
	global   *rules.Global
	reports  reporter
	now      func() time.Time
}

// NewAdmin accepts a nil reporter; the report command then explains that no
// audit store is configured.
func NewAdmin(registry *rules.Registry, global *rules.Global, reports reporter) *Admin {
	return &Admin{registry: registry, global: global, reports: reports, now: time.Now}
}

func actionNames() []string {
	actions := rules.Actions()
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}
	return names
}

func (a *Admin) lookup(name string) (configurable, error) {
	rule, ok := a.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown rule %q, expected one of %s: %w", name, strings.Join(a.registry.Names(), ", "), rules.ErrNotFound)
	}
	target, ok := rule.(configurable)
	if !ok {
		return nil, fmt.Errorf("rule %s cannot be configured: %w", rule.Name(), rules.ErrInvalidInput)
	}
	return target, nil
}

func (a *Admin) Status(ctx context.Context, guildID string) (string, error) {
	var b strings.Builder
	for _, rule := range a.registry.Rules() {
		s, err := rule.Settings(ctx, guildID)
		if err != nil {
			return "", err
		}
		state := "disabled"
		if s.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(&b, "**%s**: %s, action `%s`", rule.Name(), state, s.Action)
		if s.DeleteOnOffense {
			b.WriteString(", deletes messages")
		}
		b.WriteByte('\n')
	}
	channel, err := a.global.GlobalAnnouncementChannel(ctx, guildID)
	if err != nil {
		return "", err
	}
	if channel == "" {
		b.WriteString("Community announcements are off.")
	} else {
		fmt.Fprintf(&b, "Community announcements go to <#%s>.", channel)
	}
	return b.String(), nil
}

func (a *Admin) SetEnabled(ctx context.Context, guildID, ruleName string, enabled bool) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	before, err := rule.SetEnabled(ctx, guildID, enabled)
	if err != nil {
		return "", err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if before == enabled {
		return fmt.Sprintf("%s was already %s.", rule.Name(), state), nil
	}
	return fmt.Sprintf("%s is now %s.", rule.Name(), state), nil
}

func (a *Admin) SetAction(ctx context.Context, guildID, ruleName, value string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	action, err := rules.ParseAction(value)
	if err != nil {
		return "", err
	}
	if err := rule.SetAction(ctx, guildID, action); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s action set to `%s`. %s", rule.Name(), action, action.Describe()), nil
}

func (a *Admin) ToggleDelete(ctx context.Context, guildID, ruleName string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	_, after, err := rule.ToggleDeleteOnOffense(ctx, guildID)
	if err != nil {
		return "", err
	}
	if after {
		return fmt.Sprintf("%s now deletes offending messages.", rule.Name()), nil
	}
	return fmt.Sprintf("%s no longer deletes offending messages.", rule.Name()), nil
}

func (a *Admin) Whitelist(ctx context.Context, guildID, ruleName, roleID string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.AddWhitelistRole(ctx, guildID, roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("<@&%s> is now exempt from %s.", roleID, rule.Name()), nil
}

func (a *Admin) SetRuleChannel(ctx context.Context, guildID, ruleName, channelID string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetAnnounceChannel(ctx, guildID, channelID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s offenses will be announced in <#%s>.", rule.Name(), channelID), nil
}

func (a *Admin) Unwhitelist(ctx context.Context, guildID, ruleName, roleID string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.RemoveWhitelistRole(ctx, guildID, roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("<@&%s> is no longer exempt from %s.", roleID, rule.Name()), nil
}

func (a *Admin) SetMuteRole(ctx context.Context, guildID, ruleName, roleID string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	before, err := rule.SetMuteRole(ctx, guildID, roleID)
	if err != nil {
		return "", err
	}
	if before != "" && before != roleID {
		return fmt.Sprintf("%s will add <@&%s> instead of <@&%s>.", rule.Name(), roleID, before), nil
	}
	return fmt.Sprintf("%s will add <@&%s>.", rule.Name(), roleID), nil
}

func (a *Admin) SetNotifyRole(ctx context.Context, guildID, ruleName, roleID string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.SetNotifyRole(ctx, guildID, roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s will ping <@&%s> on offense.", rule.Name(), roleID), nil
}

// SetEnforcedChannels accepts channel mentions or ids separated by spaces or
// commas.
func (a *Admin) SetEnforcedChannels(ctx context.Context, guildID, ruleName, text string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	channels := parseChannels(text)
	if len(channels) == 0 {
		return "", fmt.Errorf("%w: no channels given", rules.ErrInvalidInput)
	}
	channels, err = rule.SetEnforcedChannels(ctx, guildID, channels)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now only runs in %s.", rule.Name(), channelMentions(channels)), nil
}

func (a *Admin) ClearEnforcedChannels(ctx context.Context, guildID, ruleName string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.ClearEnforcedChannels(ctx, guildID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now runs in every channel.", rule.Name()), nil
}

func (a *Admin) ClearRuleChannel(ctx context.Context, guildID, ruleName string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	if err := rule.ClearAnnounceChannel(ctx, guildID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s offenses are no longer announced in their own channel.", rule.Name()), nil
}

// Show renders one rule's settings.
func (a *Admin) Show(ctx context.Context, guildID, ruleName string) (string, error) {
	rule, err := a.lookup(ruleName)
	if err != nil {
		return "", err
	}
	s, err := rule.Settings(ctx, guildID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", rule.Name())
	fmt.Fprintf(&b, "Enabled: %t\n", s.Enabled)
	fmt.Fprintf(&b, "Action: `%s`\n", s.Action)
	fmt.Fprintf(&b, "Deletes messages: %t\n", s.DeleteOnOffense)
	fmt.Fprintf(&b, "Channels: %s\n", orNone(channelMentions(s.EnforcedChannels), "every channel"))
	fmt.Fprintf(&b, "Whitelisted roles: %s\n", orNone(roleMentions(s.WhitelistedRoles), "none"))
	fmt.Fprintf(&b, "Role to add: %s\n", orNone(roleMentions(nonEmpty(s.MuteRoleID)), "none"))
	fmt.Fprintf(&b, "Role to notify: %s\n", orNone(roleMentions(nonEmpty(s.NotifyRoleID)), "none"))
	fmt.Fprintf(&b, "Announcement channel: %s", orNone(channelMentions(nonEmpty(s.AnnounceChannelID)), "none"))
	return b.String(), nil
}

func (a *Admin) SetAnnouncementChannel(ctx context.Context, guildID, channelID string) (string, error) {
	if err := a.global.SetAnnouncementChannel(ctx, guildID, channelID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Community announcement channel set to <#%s>.", channelID), nil
}

func (a *Admin) ToggleAnnouncements(ctx context.Context, guildID string) (string, error) {
	before, err := a.global.AnnouncementEnabled(ctx, guildID)
	if err != nil {
		return "", err
	}
	if _, err := a.global.SetAnnouncementEnabled(ctx, guildID, !before); err != nil {
		return "", err
	}
	if before {
		return "Community announcements disabled.", nil
	}
	return "Community announcements enabled.", nil
}

// Report summarizes the last day of audit entries.
func (a *Admin) Report(ctx context.Context, guildID string) (string, error) {
	if a.reports == nil {
		return "", audit.ErrNoAuditStore
	}
	report, err := a.reports.Report(ctx, guildID, a.now().Add(-reportWindow))
	if err != nil {
		return "", err
	}
	if report.Total == 0 {
		return "No infractions in the last 24 hours.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d infractions in the last 24 hours (INFO: %d | WARN: %d | CRIT: %d)\n",
		report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
	names := make([]string, 0, len(report.ByRule))
	for name := range report.ByRule {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if report.ByRule[names[i]] != report.ByRule[names[j]] {
			return report.ByRule[names[i]] > report.ByRule[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %d\n", name, report.ByRule[name])
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// userMessage turns admin errors into replies. Unexpected errors get a
// generic reply and are reported back to the caller for logging.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, rules.ErrNotFound), errors.Is(err, rules.ErrInvalidInput), errors.Is(err, rules.ErrAlreadyExists),
		errors.Is(err, audit.ErrNoAuditStore):
		return err.Error(), true
	default:
		return "Something went wrong, check the logs.", false
	}
}
