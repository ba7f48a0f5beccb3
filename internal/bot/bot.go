// Package bot connects the Discord gateway to the automod dispatcher and the
// admin command surface.
package bot

import (
	"context"
	"time"

	"sentinel-automod/internal/rules"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const handleTimeout = 30 * time.Second

// Dispatcher is the part of automod.Dispatcher the gateway handlers need.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg rules.Message) (*rules.Infraction, error)
}

type Bot struct {
	session    *discordgo.Session
	dispatcher Dispatcher
	admin      *Admin
	logger     *zap.Logger
}

// NewSession builds a session with the intents automod needs. It does not
// connect.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

func New(session *discordgo.Session, dispatcher Dispatcher, admin *Admin, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{session: session, dispatcher: dispatcher, admin: admin, logger: logger}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	if b.admin != nil {
		b.session.AddHandler(b.onInteractionCreate)
	}

	if err := b.session.Open(); err != nil {
		return err
	}
	if b.admin != nil {
		if err := b.registerCommands(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) Close() {
	if b.session == nil {
		return
	}
	if err := b.session.Close(); err != nil {
		b.logger.Warn("discord session close failed", zap.Error(err))
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Message == nil {
		return
	}
	b.handleMessage(msg.Message)
}

// onMessageUpdate re-evaluates edits. Partial updates without an author or
// content are embed unfurls and are skipped.
func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	if msg.Message == nil || msg.Author == nil || msg.Content == "" {
		return
	}
	b.handleMessage(msg.Message)
}

func (b *Bot) handleMessage(raw *discordgo.Message) {
	if raw.Author == nil || raw.Author.Bot || raw.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	msg := rules.FromDiscord(raw)
	if _, err := b.dispatcher.Dispatch(ctx, msg); err != nil {
		b.logger.Error("automod dispatch failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			Flags:           flags,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}
