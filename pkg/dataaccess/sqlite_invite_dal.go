package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
)

type sqliteInviteDal struct {
	// l is the logger.
	l *slog.Logger

	// db is the invites database.
	db *sql.DB
}

// NewSQLiteInviteDal creates an invite data access layer backed by SQLite.
func NewSQLiteInviteDal(l *slog.Logger, db *sql.DB) InviteDal {
	return &sqliteInviteDal{
		l:  l.With(slog.String(logging.KeyDal, inviteDalName)),
		db: db,
	}
}

const inviteColumns = `id, email, discord_user, status, created_at, expires_at`

func (d *sqliteInviteDal) CreateInvite(ctx context.Context, invite *entities.Invite) error {
	defer track(inviteDalName, "create_invite", DriverSQLite, "invites").ObserveDuration()

	res, err := d.db.ExecContext(ctx, `INSERT INTO invites (email, discord_user, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		invite.Email, invite.DiscordUser, string(invite.Status), invite.CreatedAt, invite.ExpiresAt)
	if err != nil {
		return fmt.Errorf("error creating invite: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading invite id: %w", err)
	}
	invite.ID = id
	return nil
}

func (d *sqliteInviteDal) GetActiveInvite(ctx context.Context, discordUser string) (*entities.Invite, error) {
	defer track(inviteDalName, "get_active_invite", DriverSQLite, "invites").ObserveDuration()

	row := d.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites
		WHERE discord_user = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		discordUser, string(entities.InviteActive))

	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting invite: %w", err)
	}
	return inv, nil
}

func (d *sqliteInviteDal) SetInviteStatus(ctx context.Context, id int64, from, to entities.InviteStatus) error {
	defer track(inviteDalName, "set_invite_status", DriverSQLite, "invites").ObserveDuration()

	res, err := d.db.ExecContext(ctx, `UPDATE invites SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("error updating invite: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	} else if n == 0 {
		return ErrConflict
	}
	return nil
}

func (d *sqliteInviteDal) ListInvites(ctx context.Context, status entities.InviteStatus) ([]*entities.Invite, error) {
	defer track(inviteDalName, "list_invites", DriverSQLite, "invites").ObserveDuration()

	query := `SELECT ` + inviteColumns + ` FROM invites`
	args := make([]any, 0, 1)
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`

	return d.list(ctx, query, args...)
}

func (d *sqliteInviteDal) ListExpired(ctx context.Context, t time.Time) ([]*entities.Invite, error) {
	defer track(inviteDalName, "list_expired", DriverSQLite, "invites").ObserveDuration()

	return d.list(ctx, `SELECT `+inviteColumns+` FROM invites
		WHERE status = ? AND expires_at > 0 AND expires_at <= ? ORDER BY id`,
		string(entities.InviteActive), t.Unix())
}

func (d *sqliteInviteDal) list(ctx context.Context, query string, args ...any) ([]*entities.Invite, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing invites: %w", err)
	}
	defer rows.Close()

	invites := make([]*entities.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning invite: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func scanInvite(s scanner) (*entities.Invite, error) {
	inv := new(entities.Invite)
	var status string
	if err := s.Scan(&inv.ID, &inv.Email, &inv.DiscordUser, &status, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
		return nil, err
	}
	inv.Status = entities.InviteStatus(status)
	return inv, nil
}
