package rules

import (
	"context"
	"testing"

	"sentinel-automod/internal/settings"
	"sentinel-automod/internal/storage"
	"sentinel-automod/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for input, want := range map[string]Action{
		"none":        ActionNone,
		"KICK":        ActionKick,
		"add_role":    ActionAddRole,
		"notify-role": ActionNotifyRole,
		"message":     ActionNotifyRole,
		" ban ":       ActionBan,
	} {
		got, err := ParseAction(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseAction("explode")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBaseActionDefaultIsSeeded(t *testing.T) {
	ctx := context.Background()
	gateway := storage.NewMemory()
	cache, err := settings.New(gateway, 64, nil)
	require.NoError(t, err)
	rule := NewWallSpamRule(Deps{Cache: cache, DefaultAction: ActionKick})

	action, err := rule.Action(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, ActionKick, action)

	raw, err := gateway.GetRaw(ctx, "g1", WallSpamRuleName, KeyAction)
	require.NoError(t, err)
	assert.Equal(t, `"kick"`, string(raw))

	require.NoError(t, rule.SetAction(ctx, "g1", "ban"))
	action, err = rule.Action(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, ActionBan, action)

	require.ErrorIs(t, rule.SetAction(ctx, "g1", "explode"), ErrInvalidInput)
}

func TestBaseSettings(t *testing.T) {
	ctx := context.Background()
	rule := NewMaxCharsRule(newTestDeps(t))

	s, err := rule.Settings(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, ActionNone, s.Action)
	assert.True(t, s.Enforces("any-channel"))

	before, err := rule.SetEnabled(ctx, "g1", true)
	require.NoError(t, err)
	assert.False(t, before)

	channels, err := rule.SetEnforcedChannels(ctx, "g1", []string{"c1", "c2", "c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, channels)

	require.NoError(t, rule.AddWhitelistRole(ctx, "g1", "r1"))
	require.ErrorIs(t, rule.AddWhitelistRole(ctx, "g1", "r1"), ErrAlreadyExists)
	_, err = rule.SetMuteRole(ctx, "g1", "muted")
	require.NoError(t, err)
	require.NoError(t, rule.SetNotifyRole(ctx, "g1", "mods"))
	require.NoError(t, rule.SetAnnounceChannel(ctx, "g1", "log"))
	_, after, err := rule.ToggleDeleteOnOffense(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, after)

	s, err = rule.Settings(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.True(t, s.DeleteOnOffense)
	assert.True(t, s.Enforces("c2"))
	assert.False(t, s.Enforces("c3"))
	assert.True(t, s.HasWhitelistedRole([]string{"x", "r1"}))
	assert.Equal(t, "muted", s.MuteRoleID)
	assert.Equal(t, "mods", s.NotifyRoleID)
	assert.Equal(t, "log", s.AnnounceChannelID)

	require.NoError(t, rule.RemoveWhitelistRole(ctx, "g1", "r1"))
	require.ErrorIs(t, rule.RemoveWhitelistRole(ctx, "g1", "r1"), ErrNotFound)
	require.NoError(t, rule.ClearEnforcedChannels(ctx, "g1"))
	require.NoError(t, rule.ClearAnnounceChannel(ctx, "g1"))

	s, err = rule.Settings(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, s.Enforces("c3"))
	assert.Empty(t, s.AnnounceChannelID)
}

func TestGlobalAnnouncementChannel(t *testing.T) {
	ctx := context.Background()
	global := NewGlobal(newTestDeps(t).Cache)

	require.NoError(t, global.SetAnnouncementChannel(ctx, "g1", "c9"))
	channel, err := global.GlobalAnnouncementChannel(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, channel, "global announcing is off by default")

	_, err = global.SetAnnouncementEnabled(ctx, "g1", true)
	require.NoError(t, err)
	channel, err = global.GlobalAnnouncementChannel(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "c9", channel)
}

func TestRegistryOrder(t *testing.T) {
	deps := newTestDeps(t)
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewWallSpamRule(deps)))
	require.NoError(t, registry.Register(NewMentionSpamRule(deps)))
	require.ErrorIs(t, registry.Register(NewWallSpamRule(deps)), ErrAlreadyExists)

	assert.Equal(t, []string{WallSpamRuleName, MentionSpamRuleName}, registry.Names())
	rule, ok := registry.Get("mentionspamrule")
	require.True(t, ok)
	assert.Equal(t, MentionSpamRuleName, rule.Name())
}

type stubClassifier struct {
	analysis vision.Analysis
	err      error
	calls    int
}

func (s *stubClassifier) Analyze(ctx context.Context, endpoint, key, imageURL string) (vision.Analysis, error) {
	s.calls++
	return s.analysis, s.err
}

func TestImageDetectionRule(t *testing.T) {
	ctx := context.Background()
	classifier := &stubClassifier{analysis: vision.Analysis{Racy: true, Caption: "a beach", Tags: []string{"sand", "sea"}}}
	rule := NewImageDetectionRule(newTestDeps(t), classifier)

	msg := testMessage("look")
	msg.Attachments = []Attachment{{Filename: "a.png", URL: "https://cdn.example/a.png"}}

	inf, err := rule.Detect(ctx, msg)
	require.NoError(t, err)
	assert.Nil(t, inf, "no endpoint configured")
	assert.Zero(t, classifier.calls)

	require.ErrorIs(t, rule.SetEndpoint(ctx, "g1", "https://example.com"), ErrInvalidInput)
	require.NoError(t, rule.SetEndpoint(ctx, "g1", "https://bread.cognitiveservices.azure.com/"))
	require.NoError(t, rule.SetKey(ctx, "g1", "secret"))

	inf, err = rule.Detect(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, inf)
	assert.Contains(t, inf.Description, "`a beach`")
	assert.Contains(t, inf.Description, "`sand`, `sea`")
	require.Len(t, inf.Fields, 3)
	assert.Equal(t, "Racy Content", inf.Fields[1].Name)

	classifier.err = vision.ErrRateLimited
	inf, err = rule.Detect(ctx, msg)
	require.NoError(t, err)
	assert.Nil(t, inf)
}

func TestFromDiscordAttachmentExtension(t *testing.T) {
	assert.Equal(t, "png", Attachment{Filename: "Cat.PNG"}.Extension())
	assert.Equal(t, "gz", Attachment{Filename: "a.tar.gz"}.Extension())
	assert.Equal(t, "", Attachment{Filename: "README"}.Extension())
}
