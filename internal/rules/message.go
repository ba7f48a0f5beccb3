package rules

import (
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Message is the platform-neutral view of a chat message that detectors see.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	AuthorRoles []string
	Content     string
	Timestamp   time.Time
	// BotMentions lists mentioned user IDs that belong to bots.
	BotMentions []string
	Attachments []Attachment
}

type Attachment struct {
	Filename string
	URL      string
}

// Extension returns the lowercased file extension without the leading dot.
func (a Attachment) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(a.Filename)), ".")
}

// JumpURL links to the message in the client.
func (m Message) JumpURL() string {
	return "https://discord.com/channels/" + m.GuildID + "/" + m.ChannelID + "/" + m.ID
}

// FromDiscord converts a gateway message. Edited messages keep their original
// timestamp so replays rate-limit the same way.
func FromDiscord(msg *discordgo.Message) Message {
	out := Message{
		ID:        msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
		out.AuthorName = msg.Author.Username
		out.AuthorBot = msg.Author.Bot
	}
	if msg.Member != nil {
		out.AuthorRoles = append(out.AuthorRoles, msg.Member.Roles...)
	}
	for _, user := range msg.Mentions {
		if user != nil && user.Bot {
			out.BotMentions = append(out.BotMentions, user.ID)
		}
	}
	for _, attachment := range msg.Attachments {
		if attachment == nil {
			continue
		}
		out.Attachments = append(out.Attachments, Attachment{Filename: attachment.Filename, URL: attachment.URL})
	}
	return out
}
