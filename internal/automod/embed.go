package automod

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"sentinel-automod/internal/rules"

	"github.com/bwmarrin/discordgo"
)

const (
	shortenAfterWords = 25
	shortenToChars    = 120
)

// Colors are the embed colors for announcements.
type Colors struct {
	Offense int
	Failure int
}

// Outcome is what the executor managed to do for an infraction.
type Outcome struct {
	Action          rules.Action
	ActionSucceeded bool
	MessageDeleted  bool
}

// ShortenContent truncates messages of more than 25 words.
func ShortenContent(content string) string {
	if len(strings.Fields(content)) <= shortenAfterWords {
		return content
	}
	if utf8.RuneCountInString(content) > shortenToChars {
		content = string([]rune(content)[:shortenToChars])
	}
	return content + " .... (shortened)"
}

// BuildEmbed renders the moderation summary for an infraction.
func BuildEmbed(inf *rules.Infraction, outcome Outcome, colors Colors, now time.Time) *discordgo.MessageEmbed {
	msg := inf.Message

	description := "```" + strings.ReplaceAll(ShortenContent(msg.Content), "```", "'''") + "```"
	if msg.Content == "" {
		description = ""
	}
	if inf.Description != "" {
		description = strings.TrimSpace(inf.Description + "\n\n" + description)
	}

	color := colors.Offense
	action := fmt.Sprintf("`%s`", outcome.Action)
	if !outcome.ActionSucceeded {
		color = colors.Failure
		action += "\nFailed to take action. Check logs."
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Channel", Value: "<#" + msg.ChannelID + ">", Inline: true},
		{Name: "Action Taken", Value: action, Inline: true},
	}
	for _, field := range inf.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: field.Name, Value: field.Value, Inline: field.Inline})
	}
	status := "`✅` Message has been deleted."
	if !outcome.MessageDeleted {
		status = fmt.Sprintf("`❌` Message has **not** been deleted - [🔗 Jump to message](%s)", msg.JumpURL())
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Message status", Value: status})

	return &discordgo.MessageEmbed{
		Title:       inf.Rule + " - Offense found",
		Description: description,
		Color:       color,
		Author: &discordgo.MessageEmbedAuthor{
			Name: strings.TrimSpace(msg.AuthorName + " - " + msg.AuthorID),
		},
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "Infraction " + inf.ID.String()},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
