// Package rules holds the moderation rules, their per-community settings and
// the detectors that decide whether a message is offensive.
package rules

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"sentinel-automod/internal/settings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
)

// Setting keys shared by every rule.
const (
	KeyEnabled          = "is_enabled"
	KeyAction           = "action_to_take"
	KeyDeleteMessage    = "delete_message"
	KeyEnforcedChannels = "enforced_channels"
	KeyWhitelistRoles   = "whitelist_roles"
	KeyRoleToAdd        = "role_to_add"
	KeyNotifyRole       = "notify_role"
	KeyAnnounceChannel  = "rule_specific_announce"
)

// Rule is a named detection policy. Detect returns nil when the message is
// not offensive.
type Rule interface {
	Name() string
	Enabled(ctx context.Context, guildID string) (bool, error)
	Settings(ctx context.Context, guildID string) (Settings, error)
	Detect(ctx context.Context, msg Message) (*Infraction, error)
}

// Settings is the resolved per-community configuration of one rule.
type Settings struct {
	Enabled           bool
	Action            Action
	DeleteOnOffense   bool
	EnforcedChannels  []string
	WhitelistedRoles  []string
	MuteRoleID        string
	NotifyRoleID      string
	AnnounceChannelID string
}

// HasWhitelistedRole reports whether any of roles is immune to the rule.
func (s Settings) HasWhitelistedRole(roles []string) bool {
	for _, role := range roles {
		if slices.Contains(s.WhitelistedRoles, role) {
			return true
		}
	}
	return false
}

// Enforces reports whether the rule applies in channelID. An empty channel
// list means every channel.
func (s Settings) Enforces(channelID string) bool {
	return len(s.EnforcedChannels) == 0 || slices.Contains(s.EnforcedChannels, channelID)
}

// Field is an extra key/value shown with an infraction.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Infraction is the result of a positive detection. It is never persisted.
type Infraction struct {
	ID          uuid.UUID
	Rule        string
	Message     Message
	Description string
	Fields      []Field
}

func NewInfraction(rule string, msg Message, description string, fields ...Field) *Infraction {
	return &Infraction{
		ID:          uuid.New(),
		Rule:        rule,
		Message:     msg,
		Description: description,
		Fields:      fields,
	}
}

// Deps are shared by every rule constructor.
type Deps struct {
	Cache         *settings.Cache
	DefaultAction Action
	Logger        *zap.Logger
}

// Base implements the settings contract common to all rules. Concrete rules
// embed it and add Detect.
type Base struct {
	name          string
	cache         *settings.Cache
	defaultAction Action
	logger        *zap.Logger
}

func newBase(name string, deps Deps) Base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultAction := deps.DefaultAction
	if defaultAction == "" {
		defaultAction = ActionNone
	}
	return Base{
		name:          name,
		cache:         deps.Cache,
		defaultAction: defaultAction,
		logger:        logger.With(zap.String("rule", name)),
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Settings(ctx context.Context, guildID string) (Settings, error) {
	var (
		out Settings
		err error
	)
	if out.Enabled, err = b.Enabled(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.Action, err = b.Action(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.DeleteOnOffense, err = b.DeleteOnOffense(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.EnforcedChannels, err = b.EnforcedChannels(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.WhitelistedRoles, err = b.WhitelistedRoles(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.MuteRoleID, err = b.MuteRole(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.NotifyRoleID, err = b.NotifyRole(ctx, guildID); err != nil {
		return Settings{}, err
	}
	if out.AnnounceChannelID, err = b.AnnounceChannel(ctx, guildID); err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (b *Base) get(ctx context.Context, guildID, key string, dst any) (bool, error) {
	return b.cache.Get(ctx, guildID, b.name, key, dst)
}

func (b *Base) set(ctx context.Context, guildID, key string, value any) error {
	return b.cache.Set(ctx, guildID, b.name, key, value)
}

func (b *Base) Enabled(ctx context.Context, guildID string) (bool, error) {
	return settings.Get(ctx, b.cache, guildID, b.name, KeyEnabled, false)
}

// SetEnabled stores the flag and returns the previous value.
func (b *Base) SetEnabled(ctx context.Context, guildID string, enabled bool) (bool, error) {
	before, err := b.Enabled(ctx, guildID)
	if err != nil {
		return false, err
	}
	return before, b.set(ctx, guildID, KeyEnabled, enabled)
}

// Action returns the configured action. A community without one gets the
// default written back so every reader agrees on it.
func (b *Base) Action(ctx context.Context, guildID string) (Action, error) {
	raw, err := settings.GetOrSeed(ctx, b.cache, guildID, b.name, KeyAction, string(b.defaultAction))
	if err != nil {
		return "", err
	}
	action, err := ParseAction(raw)
	if err != nil {
		b.logger.Warn("stored action is invalid, using default", zap.String("guild_id", guildID), zap.String("action", raw))
		return b.defaultAction, nil
	}
	return action, nil
}

func (b *Base) SetAction(ctx context.Context, guildID string, action Action) error {
	parsed, err := ParseAction(string(action))
	if err != nil {
		return err
	}
	return b.set(ctx, guildID, KeyAction, string(parsed))
}

func (b *Base) DeleteOnOffense(ctx context.Context, guildID string) (bool, error) {
	return settings.Get(ctx, b.cache, guildID, b.name, KeyDeleteMessage, false)
}

func (b *Base) SetDeleteOnOffense(ctx context.Context, guildID string, enabled bool) error {
	return b.set(ctx, guildID, KeyDeleteMessage, enabled)
}

// ToggleDeleteOnOffense flips the flag and returns the values before and after.
func (b *Base) ToggleDeleteOnOffense(ctx context.Context, guildID string) (bool, bool, error) {
	before, err := b.DeleteOnOffense(ctx, guildID)
	if err != nil {
		return false, false, err
	}
	if err := b.SetDeleteOnOffense(ctx, guildID, !before); err != nil {
		return false, false, err
	}
	return before, !before, nil
}

func (b *Base) EnforcedChannels(ctx context.Context, guildID string) ([]string, error) {
	return settings.Get[[]string](ctx, b.cache, guildID, b.name, KeyEnforcedChannels, nil)
}

// SetEnforcedChannels restricts the rule to channels. Duplicates are dropped.
func (b *Base) SetEnforcedChannels(ctx context.Context, guildID string, channels []string) ([]string, error) {
	if slices.Contains(channels, "") {
		return nil, fmt.Errorf("%w: empty channel id", ErrInvalidInput)
	}
	deduped := dedupe(channels)
	return deduped, b.set(ctx, guildID, KeyEnforcedChannels, deduped)
}

// ClearEnforcedChannels makes the rule global again.
func (b *Base) ClearEnforcedChannels(ctx context.Context, guildID string) error {
	return b.set(ctx, guildID, KeyEnforcedChannels, []string{})
}

func (b *Base) WhitelistedRoles(ctx context.Context, guildID string) ([]string, error) {
	return settings.Get[[]string](ctx, b.cache, guildID, b.name, KeyWhitelistRoles, nil)
}

func (b *Base) AddWhitelistRole(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return fmt.Errorf("%w: empty role id", ErrInvalidInput)
	}
	roles, err := b.WhitelistedRoles(ctx, guildID)
	if err != nil {
		return err
	}
	if slices.Contains(roles, roleID) {
		return fmt.Errorf("role %s is already whitelisted: %w", roleID, ErrAlreadyExists)
	}
	return b.set(ctx, guildID, KeyWhitelistRoles, append(slices.Clone(roles), roleID))
}

func (b *Base) RemoveWhitelistRole(ctx context.Context, guildID, roleID string) error {
	roles, err := b.WhitelistedRoles(ctx, guildID)
	if err != nil {
		return err
	}
	idx := slices.Index(roles, roleID)
	if idx < 0 {
		return fmt.Errorf("role %s is not whitelisted: %w", roleID, ErrNotFound)
	}
	return b.set(ctx, guildID, KeyWhitelistRoles, slices.Delete(slices.Clone(roles), idx, idx+1))
}

// MuteRole is the role added by the add-role action. Empty when unset.
func (b *Base) MuteRole(ctx context.Context, guildID string) (string, error) {
	return settings.Get(ctx, b.cache, guildID, b.name, KeyRoleToAdd, "")
}

// SetMuteRole returns the previously configured role.
func (b *Base) SetMuteRole(ctx context.Context, guildID, roleID string) (string, error) {
	if roleID == "" {
		return "", fmt.Errorf("%w: empty role id", ErrInvalidInput)
	}
	before, err := b.MuteRole(ctx, guildID)
	if err != nil {
		return "", err
	}
	return before, b.set(ctx, guildID, KeyRoleToAdd, roleID)
}

// NotifyRole is the role pinged by the notify-role action. Empty when unset.
func (b *Base) NotifyRole(ctx context.Context, guildID string) (string, error) {
	return settings.Get(ctx, b.cache, guildID, b.name, KeyNotifyRole, "")
}

func (b *Base) SetNotifyRole(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return fmt.Errorf("%w: empty role id", ErrInvalidInput)
	}
	return b.set(ctx, guildID, KeyNotifyRole, roleID)
}

// AnnounceChannel is the rule-specific announcement channel. Empty when unset.
func (b *Base) AnnounceChannel(ctx context.Context, guildID string) (string, error) {
	return settings.Get(ctx, b.cache, guildID, b.name, KeyAnnounceChannel, "")
}

func (b *Base) SetAnnounceChannel(ctx context.Context, guildID, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("%w: empty channel id", ErrInvalidInput)
	}
	return b.set(ctx, guildID, KeyAnnounceChannel, channelID)
}

func (b *Base) ClearAnnounceChannel(ctx context.Context, guildID string) error {
	return b.set(ctx, guildID, KeyAnnounceChannel, "")
}

// dedupe keeps the first occurrence of each value, never returning nil.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
