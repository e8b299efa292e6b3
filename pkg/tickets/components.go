package tickets

import (
	"fmt"
	"strings"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
)

// PanelMessage builds the message carrying a panel's creation buttons.
func PanelMessage(p *entities.TicketPanel) *discordgo.MessageSend {
	buttons := make([]discordgo.MessageComponent, 0, len(p.ButtonLabels))
	for _, label := range p.ButtonLabels {
		buttons = append(buttons, discordgo.Button{
			Label:    label,
			Style:    discordgo.PrimaryButton,
			CustomID: CreateID(p.Category, label),
		})
	}

	description := p.Description
	if description == "" {
		description = "Press a button below to open a ticket."
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       fmt.Sprintf("%s Support", titleCase(p.Category)),
				Description: description,
				Color:       messages.ColorInfo,
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	}
}

// controlMessage builds the welcome message posted in a new ticket channel.
func controlMessage(t *entities.Ticket, p *entities.TicketPanel) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", t.MemberID),
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       fmt.Sprintf("Ticket #%d: %s", t.TicketID, t.Type),
				Description: fmt.Sprintf(messages.TicketWelcome, t.MemberID, p.HelperRoleID),
				Color:       messages.ColorInfo,
				Timestamp:   time.Time(t.Opened).Format(time.RFC3339),
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: ManageID(t.Category, ActionClose)},
					discordgo.Button{Label: "Lock", Style: discordgo.SecondaryButton, CustomID: ManageID(t.Category, ActionLock)},
					discordgo.Button{Label: "Unlock", Style: discordgo.SecondaryButton, CustomID: ManageID(t.Category, ActionUnlock)},
					discordgo.Button{Label: "Claim", Style: discordgo.SuccessButton, CustomID: ManageID(t.Category, ActionClaim)},
				},
			},
		},
	}
}

// transcriptEmbed describes a closed ticket.
func transcriptEmbed(t *entities.Ticket, closer string) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Ticket", Value: fmt.Sprintf("#%d", t.TicketID), Inline: true},
		{Name: "Type", Value: t.Type, Inline: true},
		{Name: "Category", Value: t.Category, Inline: true},
		{Name: "Opened by", Value: fmt.Sprintf("<@%s>", t.MemberID), Inline: true},
		{Name: "Closed by", Value: mention(closer), Inline: true},
		{Name: "Opened", Value: fmt.Sprintf("<t:%d:f>", t.Opened.Unix()), Inline: true},
	}
	if t.Claimed {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Claimed by", Value: fmt.Sprintf("<@%s>", t.ClaimedBy), Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf(messages.TicketClosed, t.TicketID),
		Color:     messages.ColorWarning,
		Fields:    fields,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// mention renders an actor. Dashboard actors have no Discord ID.
func mention(actorID string) string {
	if actorID == "" || strings.HasPrefix(actorID, DashboardActorPrefix) {
		return strings.TrimPrefix(actorID, DashboardActorPrefix) + " (dashboard)"
	}
	return fmt.Sprintf("<@%s>", actorID)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if len(s) <= 2 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
