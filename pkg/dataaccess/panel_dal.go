package dataaccess

import (
	"context"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
)

const panelDalName = "panel_dal"

type PanelDal interface {
	// SavePanel creates or replaces the panel for its guild and category.
	SavePanel(ctx context.Context, panel *entities.TicketPanel) error

	// GetPanel gets the panel for a guild and category.
	GetPanel(ctx context.Context, guildID, category string) (*entities.TicketPanel, error)

	// ListPanels lists every panel.
	ListPanels(ctx context.Context) ([]*entities.TicketPanel, error)
}
