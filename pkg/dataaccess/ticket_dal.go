package dataaccess

import (
	"context"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
)

const ticketDalName = "ticket_dal"

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

type TicketDal interface {
	// CreateTicket inserts a ticket. ErrDuplicate is returned if the channel
	// or the ticket number is already in use.
	CreateTicket(ctx context.Context, ticket *entities.Ticket) error

	// UpdateTicket writes the ticket's flags if its version still matches the
	// stored one, and bumps the version. ErrConflict is returned otherwise.
	UpdateTicket(ctx context.Context, ticket *entities.Ticket) error

	// GetTicket gets a ticket by its channel.
	GetTicket(ctx context.Context, guildID, channelID string) (*entities.Ticket, error)

	// GetTicketByID gets a ticket by its number.
	GetTicketByID(ctx context.Context, ticketID int) (*entities.Ticket, error)

	// TicketIDExists reports whether a ticket number is taken.
	TicketIDExists(ctx context.Context, ticketID int) (bool, error)

	// ListTickets lists tickets matching the filter and the total number of matches.
	ListTickets(ctx context.Context, filter *TicketFilter) ([]*entities.Ticket, int64, error)
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	GuildID string

	// Status matches entities.Ticket.Status, so each ticket has exactly one.
	Status   string
	Type     string
	Category string
	Search   string
	Page     int
	PerPage  int
}

// normalise clamps the paging values.
func (f *TicketFilter) normalise() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
}

func (f *TicketFilter) offset() int {
	return (f.Page - 1) * f.PerPage
}
