package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ticketMigrations are applied in order; PRAGMA user_version records how many ran.
// Tickets locked before the pre-lock overwrite was stored get the overwrite
// they were created with (entities.RequesterPermissions).
var ticketMigrations = []string{
	`CREATE TABLE IF NOT EXISTS ticket_panel (
		guild_id              TEXT NOT NULL,
		category              TEXT NOT NULL,
		creation_channel_id   TEXT NOT NULL DEFAULT '',
		panel_message_id      TEXT NOT NULL DEFAULT '',
		parent_category_id    TEXT NOT NULL DEFAULT '',
		transcript_channel_id TEXT NOT NULL DEFAULT '',
		helper_role_id        TEXT NOT NULL DEFAULT '',
		everyone_role_id      TEXT NOT NULL DEFAULT '',
		description           TEXT NOT NULL DEFAULT '',
		button_labels         TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (guild_id, category)
	);
	CREATE TABLE IF NOT EXISTS ticket_data (
		guild_id   TEXT    NOT NULL,
		channel_id TEXT    NOT NULL,
		ticket_id  INTEGER NOT NULL,
		category   TEXT    NOT NULL,
		type       TEXT    NOT NULL,
		member_id  TEXT    NOT NULL,
		created_by TEXT    NOT NULL,
		closed     INTEGER NOT NULL DEFAULT 0,
		locked     INTEGER NOT NULL DEFAULT 0,
		claimed    INTEGER NOT NULL DEFAULT 0,
		claimed_by TEXT    NOT NULL DEFAULT '',
		opened     INTEGER NOT NULL,
		PRIMARY KEY (guild_id, channel_id)
	);`,
	`ALTER TABLE ticket_data ADD COLUMN closed_by TEXT NOT NULL DEFAULT '';
	ALTER TABLE ticket_data ADD COLUMN version INTEGER NOT NULL DEFAULT 0;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ticket_data_ticket_id ON ticket_data(ticket_id);
	CREATE INDEX IF NOT EXISTS idx_ticket_data_guild_closed ON ticket_data(guild_id, closed);`,
	`ALTER TABLE ticket_data ADD COLUMN pre_lock_exists INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE ticket_data ADD COLUMN pre_lock_allow INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE ticket_data ADD COLUMN pre_lock_deny INTEGER NOT NULL DEFAULT 0;
	UPDATE ticket_data SET pre_lock_exists = 1, pre_lock_allow = 68608 WHERE locked = 1;`,
}

var inviteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS invites (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		email        TEXT    NOT NULL,
		discord_user TEXT    NOT NULL,
		status       TEXT    NOT NULL,
		created_at   INTEGER NOT NULL,
		expires_at   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_invites_user_status ON invites(discord_user, status);`,
}

// migrate brings the schema up to date.
func migrate(ctx context.Context, db *sql.DB, migrations []string) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("error reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("error starting migration %d: %w", i+1, err)
		}

		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("error applying migration %d: %w", i+1, err)
		}

		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("error recording migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("error committing migration %d: %w", i+1, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
