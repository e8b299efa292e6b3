package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config selects and locates the backing database.
type Config struct {
	// Driver is DriverSQLite or DriverMongo.
	Driver string

	// DataDir holds the SQLite files.
	DataDir string

	// MongoURI is the MongoDB connection string.
	MongoURI string
}

// Store groups the data access layers over one backend.
type Store struct {
	Panels  PanelDal
	Tickets TicketDal
	Invites InviteDal

	driver    string
	ticketsDB *sql.DB
	invitesDB *sql.DB
	mongo     *mongo.Client
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, l *slog.Logger, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return openSQLite(ctx, l, cfg.DataDir)
	case DriverMongo:
		return openMongo(ctx, l, cfg.MongoURI)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, l *slog.Logger, dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}

	ticketsDB, err := (&connection.SQLite{Path: filepath.Join(dir, ticketsDBFile)}).Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, ticketsDB, ticketMigrations); err != nil {
		_ = ticketsDB.Close()
		return nil, fmt.Errorf("error migrating %s: %w", ticketsDBFile, err)
	}

	invitesDB, err := (&connection.SQLite{Path: filepath.Join(dir, invitesDBFile)}).Connect(ctx)
	if err != nil {
		_ = ticketsDB.Close()
		return nil, err
	}
	if err := migrate(ctx, invitesDB, inviteMigrations); err != nil {
		_ = ticketsDB.Close()
		_ = invitesDB.Close()
		return nil, fmt.Errorf("error migrating %s: %w", invitesDBFile, err)
	}

	l.Info("connected to sqlite", slog.String("dir", dir))

	return &Store{
		Panels:    NewSQLitePanelDal(l, ticketsDB),
		Tickets:   NewSQLiteTicketDal(l, ticketsDB),
		Invites:   NewSQLiteInviteDal(l, invitesDB),
		driver:    DriverSQLite,
		ticketsDB: ticketsDB,
		invitesDB: invitesDB,
	}, nil
}

func openMongo(ctx context.Context, l *slog.Logger, uri string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}

	client, err := (&connection.MongoDB{ConnectionString: uri}).Connect(ctx)
	if err != nil {
		return nil, err
	}

	if err := ensureMongoIndexes(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	l.Info("connected to mongo")

	return &Store{
		Panels:  NewMongoPanelDal(l, client),
		Tickets: NewMongoTicketDal(l, client),
		Invites: NewMongoInviteDal(l, client),
		driver:  DriverMongo,
		mongo:   client,
	}, nil
}

func ensureMongoIndexes(ctx context.Context, client *mongo.Client) error {
	db := client.Database(mongoDatabase)

	_, err := db.Collection(panelCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "category", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating panel indexes: %w", err)
	}

	_, err = db.Collection(ticketCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "channel_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "ticket_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating ticket indexes: %w", err)
	}

	// Tickets locked before the pre-lock overwrite was stored get the
	// overwrite they were created with.
	_, err = db.Collection(ticketCollection).UpdateMany(ctx,
		bson.M{"locked": true, "pre_lock": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"pre_lock": entities.SavedOverwrite{Exists: true, Allow: entities.RequesterPermissions}}},
	)
	if err != nil {
		return fmt.Errorf("error backfilling locked tickets: %w", err)
	}

	_, err = db.Collection(inviteCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "discord_user", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("error creating invite indexes: %w", err)
	}
	return nil
}

// Driver returns the backend in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.mongo != nil {
		return connection.PingMongo(ctx, s.mongo)
	}

	if err := connection.PingSQLite(ctx, s.ticketsDB); err != nil {
		return err
	}
	return connection.PingSQLite(ctx, s.invitesDB)
}

// Close releases the backend connections.
func (s *Store) Close(ctx context.Context) error {
	if s.mongo != nil {
		return s.mongo.Disconnect(ctx)
	}

	var errs []error
	if s.ticketsDB != nil {
		errs = append(errs, s.ticketsDB.Close())
	}
	if s.invitesDB != nil {
		errs = append(errs, s.invitesDB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("error closing sqlite: %w", err)
	}
	return nil
}

