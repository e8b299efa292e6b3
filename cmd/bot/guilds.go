package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
)

// memberEventTimeout bounds the Plex calls made for a member event.
const memberEventTimeout = 30 * time.Second

func guildJoinedHandler(a IApp) func(s *discordgo.Session, g *discordgo.GuildCreate) {
	return func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		a.Log().Info(fmt.Sprintf("Joined guild %s", g.Name))

		// Increment the total number of guilds.
		monitoring.TotalDiscordGuilds.Inc()
	}
}

func guildLeaveHandler(a IApp) func(s *discordgo.Session, g *discordgo.GuildDelete) {
	return func(_ *discordgo.Session, g *discordgo.GuildDelete) {
		a.Log().Info(fmt.Sprintf("Left guild %s", g.Name))

		// Decrement the total number of guilds.
		monitoring.TotalDiscordGuilds.Dec()
	}
}

func (a *App) channelUpdateHandler(_ *discordgo.Session, c *discordgo.ChannelUpdate) {
	a.names.EvictChannel(c.ID)
}

func (a *App) channelDeleteHandler(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	a.names.EvictChannel(c.ID)
}

func (a *App) memberUpdateHandler(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil {
		return
	}
	a.memberUpdated(m.GuildID, m.Member)
}

// memberUpdated evicts the member's cached name and revokes Plex access when
// the member no longer holds the Plex role.
func (a *App) memberUpdated(guildID string, m *discordgo.Member) {
	a.names.EvictUser(m.User.ID)

	if !a.cfg.PlexEnabled() || guildID != a.cfg.GuildId || hasRole(m, a.cfg.PlexRoleId) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), memberEventTimeout)
	defer cancel()

	if err := a.invites.Revoke(ctx, m.User.ID); err != nil {
		a.Error("Error revoking plex access",
			slog.String(logging.KeyUserID, m.User.ID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func (a *App) memberRemoveHandler(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil {
		return
	}
	a.memberLeft(m.GuildID, m.User.ID)
}

func (a *App) memberLeft(guildID, userID string) {
	a.names.EvictUser(userID)

	if !a.cfg.PlexEnabled() || guildID != a.cfg.GuildId {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), memberEventTimeout)
	defer cancel()

	if err := a.invites.MemberLeft(ctx, userID); err != nil {
		a.Error("Error removing plex access",
			slog.String(logging.KeyUserID, userID),
			slog.String(logging.KeyError, err.Error()))
	}
}
