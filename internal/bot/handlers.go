package bot

import (
	"context"
	"strconv"

	"sentinel-automod/internal/rules"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	if data.Name != commandName || len(data.Options) == 0 {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	group, sub := "", data.Options[0]
	if sub.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
		if len(sub.Options) == 0 {
			return
		}
		group, sub = sub.Name, sub.Options[0]
	}
	reply, err := b.runCommand(ctx, interaction.GuildID, group, sub.Name, optionValues(sub.Options))
	if err != nil {
		text, expected := userMessage(err)
		if !expected {
			b.logger.Warn("admin command failed", zap.String("guild_id", interaction.GuildID),
				zap.String("group", group), zap.String("command", sub.Name), zap.Error(err))
		}
		b.respond(session, interaction, text, true)
		return
	}
	b.respond(session, interaction, reply, true)
}

// optionValues flattens subcommand options by name. Role, user and channel
// options carry their snowflake as the value. Numbers arrive as float64.
func optionValues(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	values := make(map[string]string, len(options))
	for _, option := range options {
		switch value := option.Value.(type) {
		case string:
			values[option.Name] = value
		case bool:
			values[option.Name] = strconv.FormatBool(value)
		case float64:
			values[option.Name] = strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return values
}

func (b *Bot) runCommand(ctx context.Context, guildID, group, name string, values map[string]string) (string, error) {
	switch group {
	case "":
		return b.runTopLevel(ctx, guildID, name, values)
	case "rule":
		return b.runRuleCommand(ctx, guildID, name, values)
	case "words":
		switch name {
		case "add":
			cleaned := false
			if values["cleaned"] != "" {
				var err error
				if cleaned, err = parseBool(values, "cleaned"); err != nil {
					return "", err
				}
			}
			return b.admin.AddWord(ctx, guildID, values["word"], values["channels"], cleaned)
		case "remove":
			return b.admin.RemoveWord(ctx, guildID, values["word"])
		case "list":
			return b.admin.Words(ctx, guildID)
		}
	case "extensions":
		switch name {
		case "allow", "deny":
			return b.admin.AddExtensions(ctx, guildID, name == "allow", values["extensions"], values["channels"])
		case "remove-allowed", "remove-denied":
			position, err := parseInt(values, "position")
			if err != nil {
				return "", err
			}
			return b.admin.RemoveExtensions(ctx, guildID, name == "remove-allowed", position)
		case "list":
			return b.admin.Extensions(ctx, guildID)
		}
	case "invites":
		switch name {
		case "allow":
			return b.admin.AllowInvite(ctx, guildID, values["link"])
		case "remove":
			return b.admin.RemoveInvite(ctx, guildID, values["link"])
		case "list":
			return b.admin.Invites(ctx, guildID)
		}
	case "mentions":
		switch name {
		case "threshold":
			threshold, err := parseInt(values, "count")
			if err != nil {
				return "", err
			}
			return b.admin.SetMentionThreshold(ctx, guildID, threshold)
		case "allow":
			return b.admin.AllowMention(ctx, guildID, values["user"])
		case "remove":
			return b.admin.RemoveMention(ctx, guildID, values["user"])
		}
	case "limits":
		limit, err := parseInt(values, "limit")
		if err != nil {
			return "", err
		}
		switch name {
		case "max-chars":
			return b.admin.SetLimit(ctx, guildID, rules.MaxCharsRuleName, limit)
		case "max-words":
			return b.admin.SetLimit(ctx, guildID, rules.MaxWordsRuleName, limit)
		}
	case "wallspam":
		switch name {
		case "emptyline":
			enabled, err := parseBool(values, "enabled")
			if err != nil {
				return "", err
			}
			return b.admin.SetEmptyLine(ctx, guildID, enabled)
		case "emptyline-threshold":
			lines, err := parseInt(values, "lines")
			if err != nil {
				return "", err
			}
			return b.admin.SetEmptyLineThreshold(ctx, guildID, lines)
		}
	case "image":
		switch name {
		case "endpoint":
			return b.admin.SetImageEndpoint(ctx, guildID, values["endpoint"])
		case "key":
			return b.admin.SetImageKey(ctx, guildID, values["key"])
		}
	}
	return "Unknown command.", nil
}

func (b *Bot) runTopLevel(ctx context.Context, guildID, name string, values map[string]string) (string, error) {
	switch name {
	case "status":
		return b.admin.Status(ctx, guildID)
	case "channel":
		return b.admin.SetAnnouncementChannel(ctx, guildID, values["channel"])
	case "announce":
		return b.admin.ToggleAnnouncements(ctx, guildID)
	case "report":
		return b.admin.Report(ctx, guildID)
	default:
		return "Unknown command.", nil
	}
}

func (b *Bot) runRuleCommand(ctx context.Context, guildID, name string, values map[string]string) (string, error) {
	rule := values["rule"]
	switch name {
	case "show":
		return b.admin.Show(ctx, guildID, rule)
	case "enable":
		return b.admin.SetEnabled(ctx, guildID, rule, true)
	case "disable":
		return b.admin.SetEnabled(ctx, guildID, rule, false)
	case "action":
		return b.admin.SetAction(ctx, guildID, rule, values["value"])
	case "delete":
		return b.admin.ToggleDelete(ctx, guildID, rule)
	case "whitelist-add":
		return b.admin.Whitelist(ctx, guildID, rule, values["role"])
	case "whitelist-remove":
		return b.admin.Unwhitelist(ctx, guildID, rule, values["role"])
	case "mute-role":
		return b.admin.SetMuteRole(ctx, guildID, rule, values["role"])
	case "notify-role":
		return b.admin.SetNotifyRole(ctx, guildID, rule, values["role"])
	case "channels":
		return b.admin.SetEnforcedChannels(ctx, guildID, rule, values["channels"])
	case "channels-clear":
		return b.admin.ClearEnforcedChannels(ctx, guildID, rule)
	case "announce-channel":
		return b.admin.SetRuleChannel(ctx, guildID, rule, values["channel"])
	case "announce-clear":
		return b.admin.ClearRuleChannel(ctx, guildID, rule)
	default:
		return "Unknown command.", nil
	}
}
