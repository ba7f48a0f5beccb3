package automod

import (
	"strings"
	"testing"
	"time"

	"sentinel-automod/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortenContent(t *testing.T) {
	short := strings.Repeat("word ", 25)
	assert.Equal(t, short, ShortenContent(short))

	long := strings.Repeat("word ", 26)
	got := ShortenContent(long)
	assert.Equal(t, long[:120]+" .... (shortened)", got)
}

func TestBuildEmbed(t *testing.T) {
	msg := message("hello there")
	inf := rules.NewInfraction(rules.ImageDetectionRuleName, msg, "**Tags:**\n`sand`",
		rules.Field{Name: "Racy Content", Value: "✅", Inline: true})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	embed := BuildEmbed(inf, Outcome{Action: rules.ActionKick, ActionSucceeded: true, MessageDeleted: true}, Colors{Offense: 10, Failure: 20}, now)
	assert.Equal(t, "ImageDetectionRule - Offense found", embed.Title)
	assert.Equal(t, 10, embed.Color)
	assert.Contains(t, embed.Description, "`sand`")
	assert.Contains(t, embed.Description, "```hello there```")
	assert.Equal(t, "baker - u1", embed.Author.Name)
	assert.Equal(t, "2024-05-01T12:00:00Z", embed.Timestamp)

	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "<#c1>", embed.Fields[0].Value)
	assert.Equal(t, "`kick`", embed.Fields[1].Value)
	assert.Equal(t, "Racy Content", embed.Fields[2].Name)
	assert.Equal(t, "`✅` Message has been deleted.", embed.Fields[3].Value)
}
