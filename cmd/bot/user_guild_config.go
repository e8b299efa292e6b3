package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
)

const (
	// panelCmdName is the command for all ticket panel configuration.
	panelCmdName = "panel"

	// panelSetupCmdName is the sub command that creates or updates a panel.
	panelSetupCmdName = "setup"

	optCategory    = "category"
	optChannel     = "channel"
	optParent      = "parent"
	optTranscripts = "transcripts"
	optHelperRole  = "helper_role"
	optDescription = "description"
	optLabel       = "label"
)

var (
	// panelCmd is the command for all ticket panel configuration.
	panelCmd = &discordgo.ApplicationCommand{
		Name:        panelCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Configure ticket panels.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        panelSetupCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Create or update the ticket panel for a category.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        optCategory,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The ticket category, e.g. plex, tv or generic.",
						Required:    true,
					},
					{
						Name:         optChannel,
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The channel the panel is posted in.",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						Required:     true,
					},
					{
						Name:         optParent,
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The category new ticket channels are created under.",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
						Required:     true,
					},
					{
						Name:         optTranscripts,
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The channel transcripts are posted to.",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						Required:     true,
					},
					{
						Name:        optHelperRole,
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "The role that handles these tickets.",
						Required:    true,
					},
					{
						Name:        optLabel + "1",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The first ticket button.",
						Required:    true,
					},
					{
						Name:        optDescription,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The text shown on the panel.",
					},
					{
						Name:        optLabel + "2",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The second ticket button.",
					},
					{
						Name:        optLabel + "3",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The third ticket button.",
					},
				},
			},
		},
	}
)

func panelCmdController(_ *App, subCmd string) (slashProcessor, error) {
	switch subCmd {
	case panelSetupCmdName:
		return panelSetupCmd, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

// panelFromOptions builds the panel described by a setup command.
func panelFromOptions(i *discordgo.Interaction) *entities.TicketPanel {
	opts := subCommandOptions(i)

	labels := make([]string, 0, entities.MaxPanelLabels)
	for n := 1; n <= entities.MaxPanelLabels; n++ {
		if label := optionString(opts, fmt.Sprintf("%s%d", optLabel, n)); label != "" {
			labels = append(labels, label)
		}
	}

	return &entities.TicketPanel{
		GuildID:             i.GuildID,
		Category:            strings.ToLower(optionString(opts, optCategory)),
		CreationChannelID:   optionString(opts, optChannel),
		ParentCategoryID:    optionString(opts, optParent),
		TranscriptChannelID: optionString(opts, optTranscripts),
		HelperRoleID:        optionString(opts, optHelperRole),
		EveryoneRoleID:      i.GuildID,
		Description:         optionString(opts, optDescription),
		ButtonLabels:        labels,
	}
}

// panelSetupCmd saves a panel, posts its message and routes its buttons.
func panelSetupCmd(a *App, i *discordgo.Interaction) error {
	// Ensure the user is an administrator.
	if !isAdministrator(i.Member) {
		return a.respondEphemeral(i, messages.AdministratorOnly)
	}

	panel := panelFromOptions(i)
	if err := tickets.ValidateCategory(panel.Category); err != nil {
		return a.respondEphemeral(i, tickets.UserMessage(err))
	}
	if err := tickets.ValidateLabels(panel.ButtonLabels); err != nil {
		return a.respondEphemeral(i, messages.InvalidPanelLabels)
	}

	if err := a.deferEphemeral(i); err != nil {
		return fmt.Errorf("error deferring interaction: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.InteractionTimeout)
	defer cancel()

	if err := a.savePanel(ctx, panel); err != nil {
		a.Error("Error saving ticket panel",
			slog.String(logging.KeyCategory, panel.Category),
			slog.String(logging.KeyError, err.Error()))
		return a.respond.Edit(i, tickets.UserMessage(err))
	}

	a.Info("Ticket panel saved",
		slog.String(logging.KeyGuildID, panel.GuildID),
		slog.String(logging.KeyCategory, panel.Category),
		slog.Any("labels", panel.ButtonLabels))

	return a.respond.Edit(i, fmt.Sprintf("%s <#%s>", messages.PanelSaved, panel.CreationChannelID))
}

// savePanel posts or reuses the panel message, persists the panel and
// registers its routes.
func (a *App) savePanel(ctx context.Context, panel *entities.TicketPanel) error {
	existing, err := a.store.Panels.GetPanel(ctx, panel.GuildID, panel.Category)
	if err != nil && !errors.Is(err, dataaccess.ErrNotFound) {
		return fmt.Errorf("error getting panel: %w", err)
	}

	msg := tickets.PanelMessage(panel)

	// Reuse the old message when the panel stays in the same channel.
	if existing != nil && existing.PanelMessageID != "" && existing.CreationChannelID == panel.CreationChannelID {
		if err := a.chat.EditMessage(ctx, panel.CreationChannelID, existing.PanelMessageID, msg); err != nil {
			a.Warn("Could not reuse panel message, posting a new one",
				slog.String(logging.KeyChannelID, panel.CreationChannelID),
				slog.String(logging.KeyError, err.Error()))
		} else {
			panel.PanelMessageID = existing.PanelMessageID
		}
	}

	if panel.PanelMessageID == "" {
		id, err := a.chat.SendMessage(ctx, panel.CreationChannelID, msg)
		if err != nil {
			return fmt.Errorf("error posting panel message: %w", err)
		}
		panel.PanelMessageID = id
	}

	if err := a.store.Panels.SavePanel(ctx, panel); err != nil {
		return fmt.Errorf("error saving panel: %w", err)
	}

	if err := a.routes.Register(panel); err != nil {
		return fmt.Errorf("error registering panel routes: %w", err)
	}
	return nil
}
