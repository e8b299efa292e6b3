package dataaccess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
)

type sqlitePanelDal struct {
	// l is the logger.
	l *slog.Logger

	// db is the ticket database.
	db *sql.DB
}

// NewSQLitePanelDal creates a panel data access layer backed by SQLite.
func NewSQLitePanelDal(l *slog.Logger, db *sql.DB) PanelDal {
	return &sqlitePanelDal{
		l:  l.With(slog.String(logging.KeyDal, panelDalName)),
		db: db,
	}
}

const panelColumns = `guild_id, category, creation_channel_id, panel_message_id, parent_category_id,
	transcript_channel_id, helper_role_id, everyone_role_id, description, button_labels`

func (d *sqlitePanelDal) SavePanel(ctx context.Context, panel *entities.TicketPanel) error {
	defer track(panelDalName, "save_panel", DriverSQLite, "ticket_panel").ObserveDuration()

	labels, err := json.Marshal(panel.ButtonLabels)
	if err != nil {
		return fmt.Errorf("error encoding button labels: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `INSERT INTO ticket_panel (`+panelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, category) DO UPDATE SET
			creation_channel_id = excluded.creation_channel_id,
			panel_message_id = excluded.panel_message_id,
			parent_category_id = excluded.parent_category_id,
			transcript_channel_id = excluded.transcript_channel_id,
			helper_role_id = excluded.helper_role_id,
			everyone_role_id = excluded.everyone_role_id,
			description = excluded.description,
			button_labels = excluded.button_labels`,
		panel.GuildID, panel.Category, panel.CreationChannelID, panel.PanelMessageID, panel.ParentCategoryID,
		panel.TranscriptChannelID, panel.HelperRoleID, panel.EveryoneRoleID, panel.Description, string(labels),
	)
	if err != nil {
		return fmt.Errorf("error saving panel: %w", err)
	}
	return nil
}

func (d *sqlitePanelDal) GetPanel(ctx context.Context, guildID, category string) (*entities.TicketPanel, error) {
	defer track(panelDalName, "get_panel", DriverSQLite, "ticket_panel").ObserveDuration()

	row := d.db.QueryRowContext(ctx, `SELECT `+panelColumns+` FROM ticket_panel WHERE guild_id = ? AND category = ?`,
		guildID, category)

	panel, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting panel: %w", err)
	}
	return panel, nil
}

func (d *sqlitePanelDal) ListPanels(ctx context.Context) ([]*entities.TicketPanel, error) {
	defer track(panelDalName, "list_panels", DriverSQLite, "ticket_panel").ObserveDuration()

	rows, err := d.db.QueryContext(ctx, `SELECT `+panelColumns+` FROM ticket_panel ORDER BY guild_id, category`)
	if err != nil {
		return nil, fmt.Errorf("error listing panels: %w", err)
	}
	defer rows.Close()

	panels := make([]*entities.TicketPanel, 0)
	for rows.Next() {
		panel, err := scanPanel(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning panel: %w", err)
		}
		panels = append(panels, panel)
	}
	return panels, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPanel(s scanner) (*entities.TicketPanel, error) {
	panel := new(entities.TicketPanel)
	var labels string
	if err := s.Scan(&panel.GuildID, &panel.Category, &panel.CreationChannelID, &panel.PanelMessageID,
		&panel.ParentCategoryID, &panel.TranscriptChannelID, &panel.HelperRoleID, &panel.EveryoneRoleID,
		&panel.Description, &labels); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(labels), &panel.ButtonLabels); err != nil {
		return nil, fmt.Errorf("error decoding button labels: %w", err)
	}
	return panel, nil
}
