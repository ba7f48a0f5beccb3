package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sentinel-automod/internal/audit"
	"sentinel-automod/internal/rules"
	"sentinel-automod/internal/settings"
	"sentinel-automod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingDispatcher struct {
	messages []rules.Message
	err      error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg rules.Message) (*rules.Infraction, error) {
	d.messages = append(d.messages, msg)
	return nil, d.err
}

func discordMessage(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Username: "baker"},
		Member:    &discordgo.Member{Roles: []string{"r1"}},
	}
}

func TestMessageHandlers(t *testing.T) {
	t.Run("create is dispatched", func(t *testing.T) {
		dispatcher := &recordingDispatcher{}
		b := New(nil, dispatcher, nil, nil)
		b.onMessageCreate(nil, &discordgo.MessageCreate{Message: discordMessage("hello")})

		require.Len(t, dispatcher.messages, 1)
		msg := dispatcher.messages[0]
		assert.Equal(t, "g1", msg.GuildID)
		assert.Equal(t, "u1", msg.AuthorID)
		assert.Equal(t, []string{"r1"}, msg.AuthorRoles)
	})

	t.Run("bots and direct messages are ignored", func(t *testing.T) {
		dispatcher := &recordingDispatcher{}
		b := New(nil, dispatcher, nil, nil)

		fromBot := discordMessage("hello")
		fromBot.Author.Bot = true
		b.onMessageCreate(nil, &discordgo.MessageCreate{Message: fromBot})

		direct := discordMessage("hello")
		direct.GuildID = ""
		b.onMessageCreate(nil, &discordgo.MessageCreate{Message: direct})

		assert.Empty(t, dispatcher.messages)
	})

	t.Run("partial updates are skipped", func(t *testing.T) {
		dispatcher := &recordingDispatcher{}
		b := New(nil, dispatcher, nil, nil)

		unfurl := discordMessage("")
		b.onMessageUpdate(nil, &discordgo.MessageUpdate{Message: unfurl})
		noAuthor := discordMessage("edited")
		noAuthor.Author = nil
		b.onMessageUpdate(nil, &discordgo.MessageUpdate{Message: noAuthor})
		assert.Empty(t, dispatcher.messages)

		b.onMessageUpdate(nil, &discordgo.MessageUpdate{Message: discordMessage("edited")})
		require.Len(t, dispatcher.messages, 1)
		assert.Equal(t, "edited", dispatcher.messages[0].Content)
	})

	t.Run("dispatch errors do not panic", func(t *testing.T) {
		dispatcher := &recordingDispatcher{err: errors.New("gateway down")}
		b := New(nil, dispatcher, nil, nil)
		assert.NotPanics(t, func() {
			b.onMessageCreate(nil, &discordgo.MessageCreate{Message: discordMessage("hello")})
		})
	})
}

type adminRules struct {
	wall       *rules.WallSpamRule
	maxChars   *rules.MaxCharsRule
	maxWords   *rules.MaxWordsRule
	words      *rules.WordFilterRule
	extensions *rules.AllowedExtensionsRule
	invites    *rules.DiscordInviteRule
	mentions   *rules.MentionSpamRule
	image      *rules.ImageDetectionRule
}

func newTestAdmin(t *testing.T) (*Bot, adminRules) {
	t.Helper()
	cache, err := settings.New(storage.NewMemory(), 128, nil)
	require.NoError(t, err)
	deps := rules.Deps{Cache: cache}
	r := adminRules{
		wall:       rules.NewWallSpamRule(deps),
		maxChars:   rules.NewMaxCharsRule(deps),
		maxWords:   rules.NewMaxWordsRule(deps),
		words:      rules.NewWordFilterRule(deps),
		extensions: rules.NewAllowedExtensionsRule(deps),
		invites:    rules.NewDiscordInviteRule(deps),
		mentions:   rules.NewMentionSpamRule(deps),
		image:      rules.NewImageDetectionRule(deps, nil),
	}
	registry := rules.NewRegistry()
	for _, rule := range []rules.Rule{r.wall, r.maxChars, r.maxWords, r.words, r.extensions, r.invites, r.mentions, r.image} {
		require.NoError(t, registry.Register(rule))
	}
	return New(nil, &recordingDispatcher{}, NewAdmin(registry, rules.NewGlobal(cache), nil), nil), r
}

func guildMessage(content string, attachments ...string) rules.Message {
	msg := rules.Message{ID: "m1", GuildID: "g1", ChannelID: "c1", AuthorID: "u1", Content: content}
	for _, name := range attachments {
		msg.Attachments = append(msg.Attachments, rules.Attachment{Filename: name})
	}
	return msg
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("enable and action", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "rule", "enable", map[string]string{"rule": "wallspamrule"})
		require.NoError(t, err)
		assert.Equal(t, "WallSpamRule is now enabled.", reply)

		reply, err = b.runCommand(ctx, "g1", "rule", "enable", map[string]string{"rule": "WallSpamRule"})
		require.NoError(t, err)
		assert.Equal(t, "WallSpamRule was already enabled.", reply)

		_, err = b.runCommand(ctx, "g1", "rule", "action", map[string]string{"rule": "WallSpamRule", "value": "add_role"})
		require.NoError(t, err)

		s, err := r.wall.Settings(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, s.Enabled)
		assert.Equal(t, rules.ActionAddRole, s.Action)
	})

	t.Run("unknown rule and bad action", func(t *testing.T) {
		b, _ := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "rule", "enable", map[string]string{"rule": "NopeRule"})
		require.ErrorIs(t, err, rules.ErrNotFound)
		text, expected := userMessage(err)
		assert.True(t, expected)
		assert.Contains(t, text, "WallSpamRule, MaxCharsRule")

		_, err = b.runCommand(ctx, "g1", "rule", "action", map[string]string{"rule": "WallSpamRule", "value": "explode"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)
	})

	t.Run("whitelist add and remove", func(t *testing.T) {
		b, r := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "rule", "whitelist-add", map[string]string{"rule": "WallSpamRule", "role": "r1"})
		require.NoError(t, err)
		_, err = b.runCommand(ctx, "g1", "rule", "whitelist-add", map[string]string{"rule": "WallSpamRule", "role": "r1"})
		require.ErrorIs(t, err, rules.ErrAlreadyExists)

		reply, err := b.runCommand(ctx, "g1", "rule", "whitelist-remove", map[string]string{"rule": "WallSpamRule", "role": "r1"})
		require.NoError(t, err)
		assert.Equal(t, "<@&r1> is no longer exempt from WallSpamRule.", reply)
		roles, err := r.wall.WhitelistedRoles(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, roles)

		_, err = b.runCommand(ctx, "g1", "rule", "whitelist-remove", map[string]string{"rule": "WallSpamRule", "role": "r1"})
		require.ErrorIs(t, err, rules.ErrNotFound)
	})

	t.Run("delete toggles", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "rule", "delete", map[string]string{"rule": "WallSpamRule"})
		require.NoError(t, err)
		assert.Contains(t, reply, "now deletes")
		enabled, err := r.wall.DeleteOnOffense(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("roles channels and show", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "rule", "mute-role", map[string]string{"rule": "WallSpamRule", "role": "muted"})
		require.NoError(t, err)
		assert.Equal(t, "WallSpamRule will add <@&muted>.", reply)
		reply, err = b.runCommand(ctx, "g1", "rule", "mute-role", map[string]string{"rule": "WallSpamRule", "role": "jail"})
		require.NoError(t, err)
		assert.Equal(t, "WallSpamRule will add <@&jail> instead of <@&muted>.", reply)

		_, err = b.runCommand(ctx, "g1", "rule", "notify-role", map[string]string{"rule": "WallSpamRule", "role": "mods"})
		require.NoError(t, err)
		reply, err = b.runCommand(ctx, "g1", "rule", "channels", map[string]string{"rule": "WallSpamRule", "channels": "<#c1> c2, <#c1>"})
		require.NoError(t, err)
		assert.Equal(t, "WallSpamRule now only runs in <#c1>, <#c2>.", reply)
		_, err = b.runCommand(ctx, "g1", "rule", "announce-channel", map[string]string{"rule": "WallSpamRule", "channel": "log"})
		require.NoError(t, err)

		s, err := r.wall.Settings(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "jail", s.MuteRoleID)
		assert.Equal(t, "mods", s.NotifyRoleID)
		assert.Equal(t, []string{"c1", "c2"}, s.EnforcedChannels)
		assert.Equal(t, "log", s.AnnounceChannelID)

		reply, err = b.runCommand(ctx, "g1", "rule", "show", map[string]string{"rule": "WallSpamRule"})
		require.NoError(t, err)
		assert.Contains(t, reply, "Channels: <#c1>, <#c2>")
		assert.Contains(t, reply, "Role to add: <@&jail>")
		assert.Contains(t, reply, "Announcement channel: <#log>")

		_, err = b.runCommand(ctx, "g1", "rule", "channels-clear", map[string]string{"rule": "WallSpamRule"})
		require.NoError(t, err)
		_, err = b.runCommand(ctx, "g1", "rule", "announce-clear", map[string]string{"rule": "WallSpamRule"})
		require.NoError(t, err)
		s, err = r.wall.Settings(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, s.EnforcedChannels)
		assert.Empty(t, s.AnnounceChannelID)

		_, err = b.runCommand(ctx, "g1", "rule", "channels", map[string]string{"rule": "WallSpamRule", "channels": " , "})
		require.ErrorIs(t, err, rules.ErrInvalidInput)
	})

	t.Run("word filter", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "words", "add", map[string]string{"word": "cheap", "cleaned": "true"})
		require.NoError(t, err)
		assert.Equal(t, "Filtering `cheap` (cleaned) in every channel.", reply)

		inf, err := r.words.Detect(ctx, guildMessage("buy c-heap or cheap!"))
		require.NoError(t, err)
		require.NotNil(t, inf)

		_, err = b.runCommand(ctx, "g1", "words", "add", map[string]string{"word": "cheap"})
		require.ErrorIs(t, err, rules.ErrAlreadyExists)
		_, err = b.runCommand(ctx, "g1", "words", "add", map[string]string{"word": "pills", "channels": "<#c9>"})
		require.NoError(t, err)

		reply, err = b.runCommand(ctx, "g1", "words", "list", nil)
		require.NoError(t, err)
		assert.Equal(t, "`cheap` (cleaned) in every channel\n`pills` in <#c9>", reply)

		_, err = b.runCommand(ctx, "g1", "words", "remove", map[string]string{"word": "cheap"})
		require.NoError(t, err)
		inf, err = r.words.Detect(ctx, guildMessage("cheap"))
		require.NoError(t, err)
		assert.Nil(t, inf)

		_, err = b.runCommand(ctx, "g1", "words", "add", map[string]string{"word": "x", "cleaned": "maybe"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)
	})

	t.Run("extensions", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "extensions", "deny", map[string]string{"extensions": "EXE, bat"})
		require.NoError(t, err)
		assert.Equal(t, "Added `exe, bat` in every channel to the deny list.", reply)
		_, err = b.runCommand(ctx, "g1", "extensions", "allow", map[string]string{"extensions": "png jpg", "channels": "<#c1>"})
		require.NoError(t, err)

		inf, err := r.extensions.Detect(ctx, guildMessage("", "run.exe"))
		require.NoError(t, err)
		require.NotNil(t, inf)
		inf, err = r.extensions.Detect(ctx, guildMessage("", "cat.png"))
		require.NoError(t, err)
		assert.Nil(t, inf)

		reply, err = b.runCommand(ctx, "g1", "extensions", "list", nil)
		require.NoError(t, err)
		assert.Equal(t, "**Allowed**\n1. `png, jpg` in <#c1>\n**Denied**\n1. `exe, bat` in every channel", reply)

		_, err = b.runCommand(ctx, "g1", "extensions", "remove-denied", map[string]string{"position": "1"})
		require.NoError(t, err)
		denied, err := r.extensions.DeniedEntries(ctx, "g1")
		require.NoError(t, err)
		assert.Empty(t, denied)

		_, err = b.runCommand(ctx, "g1", "extensions", "remove-allowed", map[string]string{"position": "2"})
		require.ErrorIs(t, err, rules.ErrNotFound)
		_, err = b.runCommand(ctx, "g1", "extensions", "allow", map[string]string{"extensions": ".gif"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)
	})

	t.Run("invites", func(t *testing.T) {
		b, r := newTestAdmin(t)
		inf, err := r.invites.Detect(ctx, guildMessage("join discord.gg/bakers"))
		require.NoError(t, err)
		require.NotNil(t, inf)

		_, err = b.runCommand(ctx, "g1", "invites", "allow", map[string]string{"link": "discord.gg/bakers"})
		require.NoError(t, err)
		inf, err = r.invites.Detect(ctx, guildMessage("join discord.gg/bakers"))
		require.NoError(t, err)
		assert.Nil(t, inf)

		reply, err := b.runCommand(ctx, "g1", "invites", "list", nil)
		require.NoError(t, err)
		assert.Equal(t, "Allowed invites:\ndiscord.gg/bakers", reply)

		_, err = b.runCommand(ctx, "g1", "invites", "remove", map[string]string{"link": "discord.gg/bakers"})
		require.NoError(t, err)
		_, err = b.runCommand(ctx, "g1", "invites", "remove", map[string]string{"link": "discord.gg/bakers"})
		require.ErrorIs(t, err, rules.ErrNotFound)
	})

	t.Run("mentions", func(t *testing.T) {
		b, r := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "mentions", "threshold", map[string]string{"count": "3"})
		require.NoError(t, err)
		threshold, err := r.mentions.Threshold(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 3, threshold)

		_, err = b.runCommand(ctx, "g1", "mentions", "threshold", map[string]string{"count": "0"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)
		_, err = b.runCommand(ctx, "g1", "mentions", "threshold", map[string]string{"count": "many"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)

		_, err = b.runCommand(ctx, "g1", "mentions", "allow", map[string]string{"user": "u7"})
		require.NoError(t, err)
		allowed, err := r.mentions.AllowedMentions(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u7"}, allowed)
		_, err = b.runCommand(ctx, "g1", "mentions", "remove", map[string]string{"user": "u7"})
		require.NoError(t, err)
	})

	t.Run("limits", func(t *testing.T) {
		b, r := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "limits", "max-chars", map[string]string{"limit": "200"})
		require.NoError(t, err)
		assert.Equal(t, "MaxCharsRule limit set to 200.", reply)
		_, err = b.runCommand(ctx, "g1", "limits", "max-words", map[string]string{"limit": "40"})
		require.NoError(t, err)

		chars, err := r.maxChars.Limit(ctx, "g1")
		require.NoError(t, err)
		words, err := r.maxWords.Limit(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 200, chars)
		assert.Equal(t, 40, words)
	})

	t.Run("wall spam empty lines", func(t *testing.T) {
		b, r := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "wallspam", "emptyline", map[string]string{"enabled": "true"})
		require.NoError(t, err)
		_, err = b.runCommand(ctx, "g1", "wallspam", "emptyline-threshold", map[string]string{"lines": "4"})
		require.NoError(t, err)
		_, err = b.runCommand(ctx, "g1", "wallspam", "emptyline-threshold", map[string]string{"lines": "1"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)

		enabled, err := r.wall.EmptyLineEnabled(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, enabled)
		lines, err := r.wall.EmptyLineThreshold(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 4, lines)
	})

	t.Run("image analysis", func(t *testing.T) {
		b, r := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "image", "endpoint", map[string]string{"endpoint": "https://example.com"})
		require.ErrorIs(t, err, rules.ErrInvalidInput)

		reply, err := b.runCommand(ctx, "g1", "image", "endpoint", map[string]string{"endpoint": "https://my-vision.cognitiveservices.azure.com/"})
		require.NoError(t, err)
		assert.Equal(t, "Image analysis endpoint set to <https://my-vision.cognitiveservices.azure.com>.", reply)

		reply, err = b.runCommand(ctx, "g1", "image", "key", map[string]string{"key": "secret"})
		require.NoError(t, err)
		assert.NotContains(t, reply, "secret")
		key, err := r.image.Key(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "secret", key)
	})

	t.Run("status reflects announcements", func(t *testing.T) {
		b, _ := newTestAdmin(t)
		_, err := b.runCommand(ctx, "g1", "", "channel", map[string]string{"channel": "log"})
		require.NoError(t, err)
		reply, err := b.runCommand(ctx, "g1", "", "status", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(reply, "Community announcements are off."))

		reply, err = b.runCommand(ctx, "g1", "", "announce", nil)
		require.NoError(t, err)
		assert.Equal(t, "Community announcements enabled.", reply)

		reply, err = b.runCommand(ctx, "g1", "", "status", nil)
		require.NoError(t, err)
		assert.Contains(t, reply, "**WallSpamRule**: disabled, action `none`")
		assert.Contains(t, reply, "<#log>")
	})

	t.Run("unknown command", func(t *testing.T) {
		b, _ := newTestAdmin(t)
		reply, err := b.runCommand(ctx, "g1", "words", "explode", nil)
		require.NoError(t, err)
		assert.Equal(t, "Unknown command.", reply)
	})
}

func TestOptionValues(t *testing.T) {
	values := optionValues([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "rule", Type: discordgo.ApplicationCommandOptionString, Value: "WallSpamRule"},
		{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "123"},
		{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
		{Name: "cleaned", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
	})
	assert.Equal(t, map[string]string{"rule": "WallSpamRule", "role": "123", "count": "3", "cleaned": "true"}, values)
}

func TestAdminCommandLayout(t *testing.T) {
	cmd := adminCommand()
	assert.LessOrEqual(t, len(cmd.Options), 25)

	groups := map[string][]string{}
	for _, opt := range cmd.Options {
		if opt.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			continue
		}
		assert.LessOrEqual(t, len(opt.Options), 25, opt.Name)
		for _, sub := range opt.Options {
			groups[opt.Name] = append(groups[opt.Name], sub.Name)
		}
	}
	assert.Contains(t, groups["rule"], "mute-role")
	assert.Contains(t, groups["words"], "add")
	assert.Contains(t, groups["extensions"], "remove-denied")
	assert.Contains(t, groups["image"], "key")
}

type staticReporter struct {
	report audit.Report
	since  time.Time
}

func (r *staticReporter) Report(ctx context.Context, guildID string, since time.Time) (audit.Report, error) {
	r.since = since
	return r.report, nil
}

func TestAdminReport(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reports := &staticReporter{report: audit.Report{
		Total:   3,
		ByLevel: map[string]int{audit.LevelCrit: 1, audit.LevelInfo: 2},
		ByRule:  map[string]int{"WallSpamRule": 1, "SpamRule": 2},
	}}
	admin := NewAdmin(rules.NewRegistry(), nil, reports)
	admin.now = func() time.Time { return now }

	reply, err := admin.Report(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "3 infractions in the last 24 hours (INFO: 2 | WARN: 0 | CRIT: 1)\nSpamRule: 2\nWallSpamRule: 1", reply)
	assert.Equal(t, now.Add(-24*time.Hour), reports.since)

	_, err = NewAdmin(rules.NewRegistry(), nil, nil).Report(ctx, "g1")
	text, expected := userMessage(err)
	assert.True(t, expected)
	assert.Equal(t, audit.ErrNoAuditStore.Error(), text)
}

func TestClose(t *testing.T) {
	t.Run("nil session", func(t *testing.T) {
		b := New(nil, &recordingDispatcher{}, nil, nil)
		assert.NotPanics(t, b.Close)
	})

	t.Run("unopened session closes quietly", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		session, err := NewSession("token")
		require.NoError(t, err)
		b := New(session, &recordingDispatcher{}, nil, zap.New(core))

		b.Close()
		assert.Zero(t, logs.Len())
	})
}
