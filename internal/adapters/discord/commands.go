package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "stats",
		Description: "Show your credits, rank and uploaded books",
	},
	{
		Name:        "leaderboard",
		Description: "Show the current top contributors",
	},
	{
		Name:        "alltime",
		Description: "Show the complete all-time rankings",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "page",
				Description: "Page number (starting from 1)",
				Required:    false,
			},
		},
	},
	{
		Name:        "set_leaderboard_channel",
		Description: "Bind leaderboard updates to a channel (admin)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel for leaderboard updates",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	},
	{
		Name:        "run_leaderboard_listener",
		Description: "Start listening in this channel and scan its history (admin)",
	},
	{
		Name:        "listen_add",
		Description: "Start accepting PDFs in a channel (admin)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel to listen in",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	},
	{
		Name:        "listen_remove",
		Description: "Stop accepting PDFs in a channel (admin)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel to stop listening in",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	},
	{
		Name:        "listen_list",
		Description: "List channels where PDFs are accepted (admin)",
	},
	{
		Name:        "listen_clear",
		Description: "Stop accepting PDFs everywhere (admin)",
	},
}

// RegisterCommands перезаписывает набор слэш-команд приложения. При заданном
// guildID команды регистрируются только в этой гильдии (появляются сразу, без
// часовой задержки глобальной регистрации).
func RegisterCommands(session *discordgo.Session, guildID string) error {
	if session.State == nil || session.State.User == nil {
		return fmt.Errorf("регистрация команд: сессия не открыта")
	}
	_, err := session.ApplicationCommandBulkOverwrite(session.State.User.ID, guildID, commands)
	if err != nil {
		return fmt.Errorf("регистрация команд: %w", err)
	}
	return nil
}
