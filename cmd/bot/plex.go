package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/invites"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
)

const (
	// plexCmdName is the command for Plex access.
	plexCmdName = "plex"

	// plexInviteCmdName is the sub command that requests an invite.
	plexInviteCmdName = "invite"

	optEmail = "email"
)

var (
	// plexCmd is the command for Plex access.
	plexCmd = &discordgo.ApplicationCommand{
		Name:        plexCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Plex server access.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        plexInviteCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Send a Plex invite to your email address.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        optEmail,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The email address of your Plex account.",
						Required:    true,
					},
				},
			},
		},
	}
)

func plexCmdController(_ *App, subCmd string) (slashProcessor, error) {
	switch subCmd {
	case plexInviteCmdName:
		return plexInviteCmd, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

func plexInviteCmd(a *App, i *discordgo.Interaction) error {
	if !a.cfg.PlexEnabled() {
		return a.respondEphemeral(i, messages.PlexNotConfigured)
	}

	if !hasRole(i.Member, a.cfg.PlexRoleId) {
		return a.respondEphemeral(i, fmt.Sprintf(messages.PlexRoleRequired, a.cfg.PlexRoleId))
	}

	user := interactionUser(i)
	email := optionString(subCommandOptions(i), optEmail)

	if err := a.deferEphemeral(i); err != nil {
		return fmt.Errorf("error deferring interaction: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.InteractionTimeout)
	defer cancel()

	_, err := a.invites.Invite(ctx, user.ID, email)

	var reply string
	switch {
	case err == nil:
		reply = fmt.Sprintf(messages.PlexInviteSent, email)
	case errors.Is(err, invites.ErrInvalidEmail):
		reply = messages.InvalidEmail
	case errors.Is(err, invites.ErrAlreadyInvited):
		reply = messages.PlexInviteExists
	default:
		a.Error("Error sending plex invite",
			slog.String(logging.KeyUserID, user.ID),
			slog.String(logging.KeyError, err.Error()))
		reply = messages.PlexInviteFailed
	}

	return a.respond.Edit(i, reply)
}
