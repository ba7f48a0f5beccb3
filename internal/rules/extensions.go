package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const (
	AllowedExtensionsRuleName = "AllowedExtensionsRule"

	KeyAllowedExtensions = "whitelist_extensions"
	KeyDeniedExtensions  = "blacklist_extensions"
)

// ExtensionEntry is a set of extensions scoped to channels. An empty channel
// list applies everywhere.
type ExtensionEntry struct {
	Extensions []string `json:"extensions"`
	Channels   []string `json:"channels"`
}

func (e ExtensionEntry) appliesTo(channelID string) bool {
	return len(e.Channels) == 0 || slices.Contains(e.Channels, channelID)
}

// AllowedExtensionsRule checks attachment extensions against deny and allow
// entries. Deny entries are checked first and win.
type AllowedExtensionsRule struct {
	Base
}

func NewAllowedExtensionsRule(deps Deps) *AllowedExtensionsRule {
	return &AllowedExtensionsRule{Base: newBase(AllowedExtensionsRuleName, deps)}
}

func (r *AllowedExtensionsRule) AllowedEntries(ctx context.Context, guildID string) ([]ExtensionEntry, error) {
	return r.entries(ctx, guildID, KeyAllowedExtensions)
}

func (r *AllowedExtensionsRule) DeniedEntries(ctx context.Context, guildID string) ([]ExtensionEntry, error) {
	return r.entries(ctx, guildID, KeyDeniedExtensions)
}

func (r *AllowedExtensionsRule) AddAllowed(ctx context.Context, guildID string, extensions, channels []string) (ExtensionEntry, error) {
	return r.add(ctx, guildID, KeyAllowedExtensions, extensions, channels)
}

func (r *AllowedExtensionsRule) AddDenied(ctx context.Context, guildID string, extensions, channels []string) (ExtensionEntry, error) {
	return r.add(ctx, guildID, KeyDeniedExtensions, extensions, channels)
}

func (r *AllowedExtensionsRule) DeleteAllowed(ctx context.Context, guildID string, index int) (ExtensionEntry, error) {
	return r.delete(ctx, guildID, KeyAllowedExtensions, index)
}

func (r *AllowedExtensionsRule) DeleteDenied(ctx context.Context, guildID string, index int) (ExtensionEntry, error) {
	return r.delete(ctx, guildID, KeyDeniedExtensions, index)
}

func (r *AllowedExtensionsRule) entries(ctx context.Context, guildID, key string) ([]ExtensionEntry, error) {
	var entries []ExtensionEntry
	if _, err := r.get(ctx, guildID, key, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *AllowedExtensionsRule) add(ctx context.Context, guildID, key string, extensions, channels []string) (ExtensionEntry, error) {
	normalized, err := NormalizeExtensions(extensions)
	if err != nil {
		return ExtensionEntry{}, err
	}
	entries, err := r.entries(ctx, guildID, key)
	if err != nil {
		return ExtensionEntry{}, err
	}
	entry := ExtensionEntry{Extensions: normalized, Channels: slices.Clone(channels)}
	if entry.Channels == nil {
		entry.Channels = []string{}
	}
	if err := r.set(ctx, guildID, key, append(slices.Clone(entries), entry)); err != nil {
		return ExtensionEntry{}, err
	}
	return entry, nil
}

func (r *AllowedExtensionsRule) delete(ctx context.Context, guildID, key string, index int) (ExtensionEntry, error) {
	entries, err := r.entries(ctx, guildID, key)
	if err != nil {
		return ExtensionEntry{}, err
	}
	if index < 0 || index >= len(entries) {
		return ExtensionEntry{}, fmt.Errorf("extension entry %d: %w", index, ErrNotFound)
	}
	removed := entries[index]
	if err := r.set(ctx, guildID, key, slices.Delete(slices.Clone(entries), index, index+1)); err != nil {
		return ExtensionEntry{}, err
	}
	return removed, nil
}

// NormalizeExtensions lowercases extensions given without a leading period.
func NormalizeExtensions(extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		return nil, fmt.Errorf("%w: no extensions given", ErrInvalidInput)
	}
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return nil, fmt.Errorf("%w: empty extension", ErrInvalidInput)
		}
		if strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("%w: extension %q must not start with a period", ErrInvalidInput, ext)
		}
		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out, nil
}

func (r *AllowedExtensionsRule) Detect(ctx context.Context, msg Message) (*Infraction, error) {
	if len(msg.Attachments) == 0 {
		return nil, nil
	}
	denied, err := r.DeniedEntries(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	allowed, err := r.AllowedEntries(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}

	extensions := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		extensions = append(extensions, attachment.Extension())
	}
	if ext, ok := FindDenied(denied, msg.ChannelID, extensions); ok {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("Blacklisted extension found: `%s`", ext)), nil
	}
	if ext, ok := FindNotAllowed(allowed, msg.ChannelID, extensions); ok {
		return NewInfraction(r.Name(), msg, fmt.Sprintf("Extension found not in allowed whitelist: `%s`", ext)), nil
	}
	return nil, nil
}

// FindDenied returns the first extension listed by a deny entry scoped to
// channelID.
func FindDenied(entries []ExtensionEntry, channelID string, extensions []string) (string, bool) {
	for _, entry := range entries {
		if !entry.appliesTo(channelID) {
			continue
		}
		for _, ext := range extensions {
			if slices.Contains(entry.Extensions, ext) {
				return ext, true
			}
		}
	}
	return "", false
}

// FindNotAllowed returns the first extension missing from an allow entry
// scoped to channelID.
func FindNotAllowed(entries []ExtensionEntry, channelID string, extensions []string) (string, bool) {
	for _, entry := range entries {
		if !entry.appliesTo(channelID) {
			continue
		}
		for _, ext := range extensions {
			if !slices.Contains(entry.Extensions, ext) {
				return ext, true
			}
		}
	}
	return "", false
}
