package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
)

type sqliteTicketDal struct {
	// l is the logger.
	l *slog.Logger

	// db is the ticket database.
	db *sql.DB
}

// NewSQLiteTicketDal creates a ticket data access layer backed by SQLite.
func NewSQLiteTicketDal(l *slog.Logger, db *sql.DB) TicketDal {
	return &sqliteTicketDal{
		l:  l.With(slog.String(logging.KeyDal, ticketDalName)),
		db: db,
	}
}

const ticketColumns = `guild_id, channel_id, ticket_id, category, type, member_id, created_by,
	closed, locked, claimed, claimed_by, closed_by, opened, version,
	pre_lock_exists, pre_lock_allow, pre_lock_deny`

func (d *sqliteTicketDal) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer track(ticketDalName, "create_ticket", DriverSQLite, "ticket_data").ObserveDuration()

	_, err := d.db.ExecContext(ctx, `INSERT INTO ticket_data (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.GuildID, ticket.ChannelID, ticket.TicketID, ticket.Category, ticket.Type, ticket.MemberID,
		ticket.CreatedBy, boolToInt(ticket.Closed), boolToInt(ticket.Locked), boolToInt(ticket.Claimed),
		ticket.ClaimedBy, ticket.ClosedBy, ticket.Opened, ticket.Version,
		boolToInt(ticket.PreLock.Exists), ticket.PreLock.Allow, ticket.PreLock.Deny,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("error creating ticket %d: %w", ticket.TicketID, ErrDuplicate)
	} else if err != nil {
		return fmt.Errorf("error creating ticket: %w", err)
	}
	return nil
}

func (d *sqliteTicketDal) UpdateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer track(ticketDalName, "update_ticket", DriverSQLite, "ticket_data").ObserveDuration()

	res, err := d.db.ExecContext(ctx, `UPDATE ticket_data SET
			closed = ?, locked = ?, claimed = ?, claimed_by = ?, closed_by = ?,
			pre_lock_exists = ?, pre_lock_allow = ?, pre_lock_deny = ?, version = version + 1
		WHERE guild_id = ? AND channel_id = ? AND version = ?`,
		boolToInt(ticket.Closed), boolToInt(ticket.Locked), boolToInt(ticket.Claimed), ticket.ClaimedBy,
		ticket.ClosedBy, boolToInt(ticket.PreLock.Exists), ticket.PreLock.Allow, ticket.PreLock.Deny, ticket.GuildID, ticket.ChannelID, ticket.Version,
	)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	} else if n == 0 {
		return ErrConflict
	}

	ticket.Version++
	return nil
}

func (d *sqliteTicketDal) GetTicket(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	defer track(ticketDalName, "get_ticket", DriverSQLite, "ticket_data").ObserveDuration()

	row := d.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM ticket_data WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID)
	return d.scanOne(row)
}

func (d *sqliteTicketDal) GetTicketByID(ctx context.Context, ticketID int) (*entities.Ticket, error) {
	defer track(ticketDalName, "get_ticket_by_id", DriverSQLite, "ticket_data").ObserveDuration()

	row := d.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM ticket_data WHERE ticket_id = ?`, ticketID)
	return d.scanOne(row)
}

func (d *sqliteTicketDal) TicketIDExists(ctx context.Context, ticketID int) (bool, error) {
	defer track(ticketDalName, "ticket_id_exists", DriverSQLite, "ticket_data").ObserveDuration()

	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM ticket_data WHERE ticket_id = ?`, ticketID).Scan(&n); err != nil {
		return false, fmt.Errorf("error checking ticket id: %w", err)
	}
	return n > 0, nil
}

func (d *sqliteTicketDal) ListTickets(ctx context.Context, filter *TicketFilter) ([]*entities.Ticket, int64, error) {
	defer track(ticketDalName, "list_tickets", DriverSQLite, "ticket_data").ObserveDuration()

	if filter == nil {
		filter = new(TicketFilter)
	}
	filter.normalise()

	where, args := ticketWhere(filter)

	var total int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM ticket_data`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting tickets: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM ticket_data`+where+
		` ORDER BY opened DESC, ticket_id DESC LIMIT ? OFFSET ?`,
		append(args, filter.PerPage, filter.offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*entities.Ticket, 0, filter.PerPage)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, total, rows.Err()
}

func (d *sqliteTicketDal) scanOne(row *sql.Row) (*entities.Ticket, error) {
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return t, nil
}

func ticketWhere(f *TicketFilter) (string, []any) {
	clauses := make([]string, 0)
	args := make([]any, 0)

	if f.GuildID != "" {
		clauses = append(clauses, "guild_id = ?")
		args = append(args, f.GuildID)
	}

	switch f.Status {
	case entities.StatusOpen:
		clauses = append(clauses, "closed = 0 AND locked = 0 AND claimed = 0")
	case entities.StatusClosed:
		clauses = append(clauses, "closed = 1")
	case entities.StatusLocked:
		clauses = append(clauses, "closed = 0 AND locked = 1")
	case entities.StatusClaimed:
		clauses = append(clauses, "closed = 0 AND locked = 0 AND claimed = 1")
	}

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}

	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}

	if f.Search != "" {
		like := "%" + f.Search + "%"
		search := "(type LIKE ? OR member_id LIKE ? OR created_by LIKE ? OR claimed_by LIKE ?"
		args = append(args, like, like, like, like)
		if id, err := strconv.Atoi(f.Search); err == nil {
			search += " OR ticket_id = ?"
			args = append(args, id)
		}
		clauses = append(clauses, search+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTicket(s scanner) (*entities.Ticket, error) {
	t := new(entities.Ticket)
	if err := s.Scan(&t.GuildID, &t.ChannelID, &t.TicketID, &t.Category, &t.Type, &t.MemberID, &t.CreatedBy,
		&t.Closed, &t.Locked, &t.Claimed, &t.ClaimedBy, &t.ClosedBy, &t.Opened, &t.Version,
		&t.PreLock.Exists, &t.PreLock.Allow, &t.PreLock.Deny); err != nil {
		return nil, err
	}
	return t, nil
}
