package tickets

import (
	"context"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/transcript"
)

// Chat is the part of Discord the ticket engine needs.
type Chat interface {
	// BotID returns the user ID of the bot.
	BotID() string

	// CreateChannel creates a guild channel and returns its ID.
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (string, error)

	// DeleteChannel deletes a channel.
	DeleteChannel(ctx context.Context, channelID string) error

	// SendMessage posts a message to a channel.
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)

	// EditMessage replaces the content, embeds and components of a message.
	EditMessage(ctx context.Context, channelID, messageID string, msg *discordgo.MessageSend) error

	// SendDM sends a direct message. ErrDMRefused is returned when the user
	// does not accept direct messages.
	SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) error

	// History returns every message in a channel, oldest first.
	History(ctx context.Context, channelID string) ([]transcript.Message, error)

	// MemberRoles returns the role IDs a guild member holds.
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)

	// MemberOverwrite returns the member's permission overwrite in a channel,
	// or nil if there is none.
	MemberOverwrite(ctx context.Context, channelID, userID string) (*discordgo.PermissionOverwrite, error)

	// SetMemberOverwrite replaces a member's permission overwrite in a channel.
	SetMemberOverwrite(ctx context.Context, channelID string, ow *discordgo.PermissionOverwrite) error

	// DeleteMemberOverwrite removes a member's permission overwrite from a channel.
	DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error
}
