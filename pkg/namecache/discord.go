package namecache

import (
	"context"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
)

// DiscordResolver resolves names from the session state, then the REST API.
type DiscordResolver struct {
	s       *discordgo.Session
	guildID string
}

// NewDiscordResolver creates a resolver for members of guildID.
func NewDiscordResolver(s *discordgo.Session, guildID string) *DiscordResolver {
	return &DiscordResolver{s: s, guildID: guildID}
}

func (r *DiscordResolver) UserName(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if r.s.State != nil {
		if m, err := r.s.State.Member(r.guildID, userID); err == nil && m.User != nil {
			return displayName(m), nil
		}
	}

	m, err := r.s.GuildMember(r.guildID, userID)
	if err != nil {
		return "", fmt.Errorf("error getting member: %w", err)
	}
	return displayName(m), nil
}

func (r *DiscordResolver) ChannelName(ctx context.Context, channelID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if r.s.State != nil {
		if ch, err := r.s.State.Channel(channelID); err == nil {
			return ch.Name, nil
		}
	}

	ch, err := r.s.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("error getting channel: %w", err)
	}
	return ch.Name, nil
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	return m.User.Username
}
