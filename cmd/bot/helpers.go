package main

import (
	"slices"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
)

// responder answers interactions.
type responder interface {
	Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	Edit(i *discordgo.Interaction, content string) error
}

type sessionResponder struct {
	s *discordgo.Session
}

func (r sessionResponder) Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return r.s.InteractionRespond(i, resp)
}

func (r sessionResponder) Edit(i *discordgo.Interaction, content string) error {
	_, err := r.s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content})
	return err
}

func (a *App) respondError(i *discordgo.Interaction) error {
	return a.respondEphemeral(i, messages.GenericError)
}

func (a *App) respondEphemeral(i *discordgo.Interaction, content string) error {
	return a.respond.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// deferEphemeral acknowledges the interaction so the reply can follow later.
func (a *App) deferEphemeral(i *discordgo.Interaction) error {
	return a.respond.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// interactionUser returns the user behind an interaction in a guild or a DM.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func hasRole(m *discordgo.Member, roleID string) bool {
	return m != nil && roleID != "" && slices.Contains(m.Roles, roleID)
}

func isAdministrator(m *discordgo.Member) bool {
	return m != nil && m.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
}
