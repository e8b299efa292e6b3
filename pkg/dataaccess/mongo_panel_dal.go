package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const panelCollection = "ticket_panels"

type mongoPanelDal struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewMongoPanelDal creates a panel data access layer backed by MongoDB.
func NewMongoPanelDal(l *slog.Logger, client *mongo.Client) PanelDal {
	return &mongoPanelDal{
		l:      l.With(slog.String(logging.KeyDal, panelDalName)),
		client: client,
	}
}

func (d *mongoPanelDal) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection(panelCollection)
}

func (d *mongoPanelDal) SavePanel(ctx context.Context, panel *entities.TicketPanel) error {
	defer track(panelDalName, "save_panel", DriverMongo, panelCollection).ObserveDuration()

	opts := options.Update().SetUpsert(true)
	_, err := d.collection().UpdateOne(ctx, bson.M{"guild_id": panel.GuildID, "category": panel.Category}, bson.M{"$set": panel}, opts)
	if err != nil {
		return fmt.Errorf("error saving panel: %w", err)
	}
	return nil
}

func (d *mongoPanelDal) GetPanel(ctx context.Context, guildID, category string) (*entities.TicketPanel, error) {
	defer track(panelDalName, "get_panel", DriverMongo, panelCollection).ObserveDuration()

	panel := new(entities.TicketPanel)
	err := d.collection().FindOne(ctx, bson.M{"guild_id": guildID, "category": category}).Decode(panel)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting panel: %w", err)
	}
	return panel, nil
}

func (d *mongoPanelDal) ListPanels(ctx context.Context) ([]*entities.TicketPanel, error) {
	defer track(panelDalName, "list_panels", DriverMongo, panelCollection).ObserveDuration()

	opts := options.Find().SetSort(bson.D{{Key: "guild_id", Value: 1}, {Key: "category", Value: 1}})
	cur, err := d.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing panels: %w", err)
	}

	panels := make([]*entities.TicketPanel, 0)
	if err := cur.All(ctx, &panels); err != nil {
		return nil, fmt.Errorf("error decoding panels: %w", err)
	}
	return panels, nil
}
