package tickets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/transcript"
)

// historyPageSize is the largest page the messages endpoint returns.
const historyPageSize = 100

// DiscordChat implements Chat over a discordgo session.
type DiscordChat struct {
	s *discordgo.Session
}

// NewDiscordChat wraps a session.
func NewDiscordChat(s *discordgo.Session) *DiscordChat {
	return &DiscordChat{s: s}
}

func (c *DiscordChat) BotID() string {
	if c.s.State == nil || c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.ID
}

func (c *DiscordChat) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch, err := c.s.GuildChannelCreateComplex(guildID, data)
	if err != nil {
		return "", fmt.Errorf("error creating channel: %w", err)
	}
	return ch.ID, nil
}

func (c *DiscordChat) DeleteChannel(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.s.ChannelDelete(channelID); err != nil {
		return fmt.Errorf("error deleting channel: %w", err)
	}
	return nil
}

func (c *DiscordChat) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m, err := c.s.ChannelMessageSendComplex(channelID, msg)
	if err != nil {
		return "", fmt.Errorf("error sending message: %w", err)
	}
	return m.ID, nil
}

func (c *DiscordChat) EditMessage(ctx context.Context, channelID, messageID string, msg *discordgo.MessageSend) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := discordgo.NewMessageEdit(channelID, messageID).
		SetContent(msg.Content)
	edit.Components = msg.Components
	if len(msg.Embeds) > 0 {
		edit.SetEmbeds(msg.Embeds)
	} else if msg.Embed != nil {
		edit.SetEmbed(msg.Embed)
	}

	if _, err := c.s.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("error editing message: %w", err)
	}
	return nil
}

func (c *DiscordChat) SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.s.UserChannelCreate(userID)
	if err != nil {
		return dmError(err)
	}

	if _, err := c.s.ChannelMessageSendComplex(ch.ID, msg); err != nil {
		return dmError(err)
	}
	return nil
}

func dmError(err error) error {
	restErr := new(discordgo.RESTError)
	if errors.As(err, &restErr) {
		if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
			return fmt.Errorf("%w: %s", ErrDMRefused, restErr.Message.Message)
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
			return ErrDMRefused
		}
	}
	return fmt.Errorf("error sending direct message: %w", err)
}

func (c *DiscordChat) History(ctx context.Context, channelID string) ([]transcript.Message, error) {
	all := make([]*discordgo.Message, 0, historyPageSize)

	before := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.s.ChannelMessages(channelID, historyPageSize, before, "", "")
		if err != nil {
			return nil, fmt.Errorf("error getting channel messages: %w", err)
		}

		all = append(all, page...)
		if len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// The API returns newest first.
	msgs := make([]transcript.Message, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		msgs = append(msgs, toTranscriptMessage(all[i]))
	}
	return msgs, nil
}

func toTranscriptMessage(m *discordgo.Message) transcript.Message {
	tm := transcript.Message{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Embeds:    len(m.Embeds),
	}

	if m.Author != nil {
		tm.AuthorID = m.Author.ID
		tm.Author = m.Author.Username
	}

	for _, a := range m.Attachments {
		tm.Attachments = append(tm.Attachments, a.URL)
	}
	return tm
}

func (c *DiscordChat) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	member, err := c.s.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting member: %w", err)
	}
	return member.Roles, nil
}

func (c *DiscordChat) MemberOverwrite(ctx context.Context, channelID, userID string) (*discordgo.PermissionOverwrite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, err := c.s.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting channel: %w", err)
	}

	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == userID && ow.Type == discordgo.PermissionOverwriteTypeMember {
			cp := *ow
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *DiscordChat) SetMemberOverwrite(ctx context.Context, channelID string, ow *discordgo.PermissionOverwrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.s.ChannelPermissionSet(channelID, ow.ID, discordgo.PermissionOverwriteTypeMember, ow.Allow, ow.Deny); err != nil {
		return fmt.Errorf("error setting permission overwrite: %w", err)
	}
	return nil
}

func (c *DiscordChat) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.s.ChannelPermissionDelete(channelID, userID); err != nil {
		return fmt.Errorf("error deleting permission overwrite: %w", err)
	}
	return nil
}

// AddMemberRole grants a role to a guild member.
func (c *DiscordChat) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.s.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("error adding role: %w", err)
	}
	return nil
}
