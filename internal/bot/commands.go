package bot

import (
	"github.com/bwmarrin/discordgo"
)

const commandName = "automod"

var manageGuild int64 = discordgo.PermissionManageServer

func option(kind discordgo.ApplicationCommandOptionType, name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        kind,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func ruleOption() *discordgo.ApplicationCommandOption {
	return option(discordgo.ApplicationCommandOptionString, "rule", "Rule name, for example WallSpamRule", true)
}

func roleOption(description string) *discordgo.ApplicationCommandOption {
	return option(discordgo.ApplicationCommandOptionRole, "role", description, true)
}

func channelsOption(required bool) *discordgo.ApplicationCommandOption {
	return option(discordgo.ApplicationCommandOptionString, "channels", "Channel mentions separated by spaces", required)
}

func intOption(name, description string, minValue float64) *discordgo.ApplicationCommandOption {
	opt := option(discordgo.ApplicationCommandOptionInteger, name, description, true)
	opt.MinValue = &minValue
	return opt
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func subcommandGroup(name, description string, subcommands ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
		Name:        name,
		Description: description,
		Options:     subcommands,
	}
}

func adminCommand() *discordgo.ApplicationCommand {
	actionChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 5)
	for _, action := range actionNames() {
		actionChoices = append(actionChoices, &discordgo.ApplicationCommandOptionChoice{Name: action, Value: action})
	}
	actionOption := option(discordgo.ApplicationCommandOptionString, "value", "Action to take", true)
	actionOption.Choices = actionChoices
	dmPermission := false

	return &discordgo.ApplicationCommand{
		Name:                     commandName,
		Description:              "Configure automatic moderation",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand("status", "Show every rule and its action"),
			subcommand("channel", "Set the community announcement channel",
				option(discordgo.ApplicationCommandOptionChannel, "channel", "Announcement channel", true)),
			subcommand("announce", "Toggle community announcements"),
			subcommand("report", "Summarize the last day of infractions"),

			subcommandGroup("rule", "Settings shared by every rule",
				subcommand("show", "Show a rule's settings", ruleOption()),
				subcommand("enable", "Enable a rule", ruleOption()),
				subcommand("disable", "Disable a rule", ruleOption()),
				subcommand("action", "Set the action taken on offense", ruleOption(), actionOption),
				subcommand("delete", "Toggle deleting offending messages", ruleOption()),
				subcommand("whitelist-add", "Exempt a role from a rule", ruleOption(), roleOption("Role to exempt")),
				subcommand("whitelist-remove", "Stop exempting a role", ruleOption(), roleOption("Exempt role")),
				subcommand("mute-role", "Role added by the add_role action", ruleOption(), roleOption("Role to add")),
				subcommand("notify-role", "Role pinged by the notify_role action", ruleOption(), roleOption("Role to ping")),
				subcommand("channels", "Only run a rule in these channels", ruleOption(), channelsOption(true)),
				subcommand("channels-clear", "Run a rule in every channel", ruleOption()),
				subcommand("announce-channel", "Announce a rule's offenses in a channel", ruleOption(),
					option(discordgo.ApplicationCommandOptionChannel, "channel", "Announcement channel", true)),
				subcommand("announce-clear", "Stop announcing a rule's offenses in its own channel", ruleOption()),
			),
			subcommandGroup("words", "Word filter",
				subcommand("add", "Filter a word",
					option(discordgo.ApplicationCommandOptionString, "word", "Word or phrase", true),
					channelsOption(false),
					option(discordgo.ApplicationCommandOptionBoolean, "cleaned", "Strip punctuation and mentions before matching", false)),
				subcommand("remove", "Stop filtering a word",
					option(discordgo.ApplicationCommandOptionString, "word", "Word or phrase", true)),
				subcommand("list", "List filtered words"),
			),
			subcommandGroup("extensions", "Attachment extensions",
				subcommand("allow", "Allow extensions",
					option(discordgo.ApplicationCommandOptionString, "extensions", "Extensions without a period, separated by spaces", true),
					channelsOption(false)),
				subcommand("deny", "Deny extensions",
					option(discordgo.ApplicationCommandOptionString, "extensions", "Extensions without a period, separated by spaces", true),
					channelsOption(false)),
				subcommand("remove-allowed", "Remove an allow entry", intOption("position", "Position shown by list", 1)),
				subcommand("remove-denied", "Remove a deny entry", intOption("position", "Position shown by list", 1)),
				subcommand("list", "List allow and deny entries"),
			),
			subcommandGroup("invites", "Invite links",
				subcommand("allow", "Allow an invite link",
					option(discordgo.ApplicationCommandOptionString, "link", "Invite link", true)),
				subcommand("remove", "Stop allowing an invite link",
					option(discordgo.ApplicationCommandOptionString, "link", "Invite link", true)),
				subcommand("list", "List allowed invite links"),
			),
			subcommandGroup("mentions", "Mention spam",
				subcommand("threshold", "Mentions needed to flag a message", intOption("count", "Mention count", 1)),
				subcommand("allow", "Ignore mentions of a user",
					option(discordgo.ApplicationCommandOptionUser, "user", "User", true)),
				subcommand("remove", "Count mentions of a user again",
					option(discordgo.ApplicationCommandOptionUser, "user", "User", true)),
			),
			subcommandGroup("limits", "Message length",
				subcommand("max-chars", "Characters needed to flag a message", intOption("limit", "Character count", 1)),
				subcommand("max-words", "Words needed to flag a message", intOption("limit", "Word count", 1)),
			),
			subcommandGroup("wallspam", "Wall spam",
				subcommand("emptyline", "Flag runs of empty lines instead of walls of text",
					option(discordgo.ApplicationCommandOptionBoolean, "enabled", "Empty line mode", true)),
				subcommand("emptyline-threshold", "Empty lines needed to flag a message", intOption("lines", "Line count", 2)),
			),
			subcommandGroup("image", "Image analysis",
				subcommand("endpoint", "Set the image analysis endpoint",
					option(discordgo.ApplicationCommandOptionString, "endpoint", "Endpoint URL", true)),
				subcommand("key", "Set the image analysis key",
					option(discordgo.ApplicationCommandOptionString, "key", "Subscription key", true)),
			),
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{adminCommand()})
	return err
}
