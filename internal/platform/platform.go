// Package platform is the moderation surface of the chat platform consumed by
// the automod pipeline.
package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrForbidden means the bot lacks the permission or access for the call.
	ErrForbidden = errors.New("platform: forbidden")
	// ErrNotFound means the target message, channel, member or role is gone.
	ErrNotFound = errors.New("platform: not found")
)

// Client performs moderation calls. Implementations return errors wrapping
// ErrForbidden or ErrNotFound when the platform reports those conditions.
type Client interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	// SendMessage posts plain content. Only the listed roles may be pinged.
	SendMessage(ctx context.Context, channelID, content string, pingRoles []string) error
}

// Discord implements Client on a discordgo session.
type Discord struct {
	session *discordgo.Session
}

var _ Client = (*Discord)(nil)

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return classify(d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return classify(d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return classify(d.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx)))
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return classify(d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return classify(err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string, pingRoles []string) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Roles: pingRoles,
		},
	}, discordgo.WithContext(ctx))
	return classify(err)
}

// classify maps discordgo REST failures onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return errors.Join(ErrForbidden, err)
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole:
			return errors.Join(ErrNotFound, err)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return errors.Join(ErrForbidden, err)
		case http.StatusNotFound:
			return errors.Join(ErrNotFound, err)
		}
	}
	return err
}
