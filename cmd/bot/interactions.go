package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ticketCmdName is the command for managing the ticket in the current channel.
	ticketCmdName = "ticket"
)

// slashCommandController picks the processor for a sub command.
type slashCommandController func(a *App, subCmd string) (slashProcessor, error)

// slashProcessor is the processor for slash commands.
type slashProcessor func(a *App, i *discordgo.Interaction) error

var (
	// ticketCmd runs the ticket buttons as slash commands in a ticket channel.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        ticketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for controlling tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        string(tickets.ActionClaim),
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This claims the ticket for the channel that the command was executed in.",
			},
			{
				Name:        string(tickets.ActionLock),
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This stops the ticket owner from sending messages.",
			},
			{
				Name:        string(tickets.ActionUnlock),
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This lets the ticket owner send messages again.",
			},
			{
				Name:        string(tickets.ActionClose),
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This closes the ticket for the channel that the command was executed in.",
			},
		},
	}
)

func (a *App) interactionHandler(controllers map[string]slashCommandController) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		a.handleInteraction(controllers, i.Interaction)
	}
}

func (a *App) handleInteraction(controllers map[string]slashCommandController, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		a.handleSlashCommand(controllers, i)
	case discordgo.InteractionMessageComponent:
		a.handleComponent(i)
	case discordgo.InteractionModalSubmit:
		a.handleModal(i)
	}
}

func (a *App) handleSlashCommand(controllers map[string]slashCommandController, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	a.Debug("Handling interaction " + data.Name)

	t := prometheus.NewTimer(monitoring.DiscordInteractionDuration.WithLabelValues(data.Name))
	defer t.ObserveDuration()

	controller, ok := controllers[data.Name]
	if !ok {
		a.Error(fmt.Sprintf("No controller found for command %s", data.Name),
			slog.String("command", data.Name))

		if err := a.respondError(i); err != nil {
			a.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	subCmd := ""
	if len(data.Options) > 0 {
		subCmd = data.Options[0].Name
	}

	processor, err := controller(a, subCmd)
	if err != nil {
		a.Error(fmt.Sprintf("Error getting processor for command %s", data.Name),
			slog.String(logging.KeyError, err.Error()))

		if err := a.respondError(i); err != nil {
			a.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	if err := processor(a, i); err != nil {
		a.Error(fmt.Sprintf("Error processing command %s", data.Name),
			slog.String(logging.KeyError, err.Error()))
	}
}

func ticketCmdController(_ *App, subCmd string) (slashProcessor, error) {
	action := tickets.Action(subCmd)
	if !action.Valid() {
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}

	return func(a *App, i *discordgo.Interaction) error {
		user := interactionUser(i)
		if user == nil {
			return fmt.Errorf("interaction has no user")
		}

		if err := a.deferEphemeral(i); err != nil {
			return fmt.Errorf("error deferring interaction: %w", err)
		}

		reply := a.manageTicket(i, tickets.Route{Kind: tickets.RouteManage, Action: action}, user.ID)
		return a.respond.Edit(i, reply)
	}, nil
}

// handleComponent routes a button press through the dispatch table.
func (a *App) handleComponent(i *discordgo.Interaction) {
	customID := i.MessageComponentData().CustomID
	if a.handleVerifyComponent(i, customID) {
		return
	}

	route, ok := a.routes.Resolve(customID)
	if !ok {
		a.Debug("Ignoring unknown component", slog.String(logging.KeyCustomID, customID))
		return
	}

	t := prometheus.NewTimer(monitoring.DiscordInteractionDuration.WithLabelValues(route.Kind.String()))
	defer t.ObserveDuration()

	user := interactionUser(i)
	if user == nil {
		return
	}

	l := a.With(
		slog.String(logging.KeyCustomID, customID),
		slog.String(logging.KeyUserID, user.ID),
	)

	if err := a.deferEphemeral(i); err != nil {
		l.Error("Error deferring interaction", slog.String(logging.KeyError, err.Error()))
		return
	}

	var reply string
	switch route.Kind {
	case tickets.RouteCreate:
		reply = a.createTicket(i, route, user.ID)
	case tickets.RouteManage:
		reply = a.manageTicket(i, route, user.ID)
	}

	if err := a.respond.Edit(i, reply); err != nil {
		l.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
	}
}

func (a *App) createTicket(i *discordgo.Interaction, route tickets.Route, userID string) string {
	var created *entities.Ticket
	err := a.bridge.Call(context.Background(), a.cfg.InteractionTimeout, func(ctx context.Context) error {
		t, err := a.manager.Create(ctx, tickets.CreateRequest{
			GuildID:  i.GuildID,
			Category: route.Category,
			Label:    route.Label,
			UserID:   userID,
		})
		created = t
		return err
	})
	if err != nil {
		a.logTicketError("Error creating ticket", err,
			slog.String(logging.KeyCategory, route.Category),
			slog.String(logging.KeyUserID, userID))
		return tickets.UserMessage(err)
	}
	return fmt.Sprintf(messages.TicketCreated, created.ChannelID)
}

func (a *App) manageTicket(i *discordgo.Interaction, route tickets.Route, userID string) string {
	ref := tickets.Ref{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Category:  route.Category,
	}

	var res *tickets.Result
	err := a.bridge.Call(context.Background(), a.cfg.InteractionTimeout, func(ctx context.Context) error {
		r, err := a.manager.Apply(ctx, ref, route.Action, tickets.Actor{ID: userID})
		res = r
		return err
	})
	if err != nil {
		a.logTicketError("Error managing ticket", err,
			slog.String(logging.KeyChannelID, i.ChannelID),
			slog.String("action", string(route.Action)),
			slog.String(logging.KeyUserID, userID))
		return tickets.UserMessage(err)
	}
	return res.Message
}

// logTicketError logs failures the user caused at info and the rest as errors.
func (a *App) logTicketError(msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String(logging.KeyError, err.Error()))
	if tickets.UserMessage(err) == messages.GenericError {
		a.Error(msg, attrs...)
		return
	}
	a.Info(msg, attrs...)
}

// subCommandOptions returns the options of the first sub command keyed by name.
func subCommandOptions(i *discordgo.Interaction) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return out
	}
	for _, o := range data.Options[0].Options {
		out[o.Name] = o
	}
	return out
}

// optionString returns an option's value as a string. Channel, role and user
// options carry their ID.
func optionString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Value == nil {
		return ""
	}
	if s, ok := o.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(o.Value))
}
