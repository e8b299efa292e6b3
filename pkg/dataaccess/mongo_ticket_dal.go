package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketCollection = "tickets"

type mongoTicketDal struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewMongoTicketDal creates a ticket data access layer backed by MongoDB.
func NewMongoTicketDal(l *slog.Logger, client *mongo.Client) TicketDal {
	return &mongoTicketDal{
		l:      l.With(slog.String(logging.KeyDal, ticketDalName)),
		client: client,
	}
}

func (d *mongoTicketDal) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection(ticketCollection)
}

func (d *mongoTicketDal) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer track(ticketDalName, "create_ticket", DriverMongo, ticketCollection).ObserveDuration()

	_, err := d.collection().InsertOne(ctx, ticket)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("error creating ticket %d: %w", ticket.TicketID, ErrDuplicate)
	} else if err != nil {
		return fmt.Errorf("error creating ticket: %w", err)
	}
	return nil
}

func (d *mongoTicketDal) UpdateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer track(ticketDalName, "update_ticket", DriverMongo, ticketCollection).ObserveDuration()

	filter := bson.M{
		"guild_id":   ticket.GuildID,
		"channel_id": ticket.ChannelID,
		"version":    ticket.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"closed":     ticket.Closed,
			"locked":     ticket.Locked,
			"claimed":    ticket.Claimed,
			"claimed_by": ticket.ClaimedBy,
			"closed_by":  ticket.ClosedBy,
			"pre_lock":   ticket.PreLock,
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := d.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	} else if res.MatchedCount == 0 {
		return ErrConflict
	}

	ticket.Version++
	return nil
}

func (d *mongoTicketDal) GetTicket(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	defer track(ticketDalName, "get_ticket", DriverMongo, ticketCollection).ObserveDuration()

	return d.findOne(ctx, bson.M{"guild_id": guildID, "channel_id": channelID})
}

func (d *mongoTicketDal) GetTicketByID(ctx context.Context, ticketID int) (*entities.Ticket, error) {
	defer track(ticketDalName, "get_ticket_by_id", DriverMongo, ticketCollection).ObserveDuration()

	return d.findOne(ctx, bson.M{"ticket_id": ticketID})
}

func (d *mongoTicketDal) TicketIDExists(ctx context.Context, ticketID int) (bool, error) {
	defer track(ticketDalName, "ticket_id_exists", DriverMongo, ticketCollection).ObserveDuration()

	n, err := d.collection().CountDocuments(ctx, bson.M{"ticket_id": ticketID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("error checking ticket id: %w", err)
	}
	return n > 0, nil
}

func (d *mongoTicketDal) ListTickets(ctx context.Context, filter *TicketFilter) ([]*entities.Ticket, int64, error) {
	defer track(ticketDalName, "list_tickets", DriverMongo, ticketCollection).ObserveDuration()

	if filter == nil {
		filter = new(TicketFilter)
	}
	filter.normalise()

	query := ticketQuery(filter)

	total, err := d.collection().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting tickets: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "opened", Value: -1}, {Key: "ticket_id", Value: -1}}).
		SetSkip(int64(filter.offset())).
		SetLimit(int64(filter.PerPage))

	cur, err := d.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing tickets: %w", err)
	}

	tickets := make([]*entities.Ticket, 0, filter.PerPage)
	if err := cur.All(ctx, &tickets); err != nil {
		return nil, 0, fmt.Errorf("error decoding tickets: %w", err)
	}
	return tickets, total, nil
}

func (d *mongoTicketDal) findOne(ctx context.Context, filter bson.M) (*entities.Ticket, error) {
	ticket := new(entities.Ticket)
	err := d.collection().FindOne(ctx, filter).Decode(ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return ticket, nil
}

func ticketQuery(f *TicketFilter) bson.M {
	q := bson.M{}
	if f.GuildID != "" {
		q["guild_id"] = f.GuildID
	}

	switch f.Status {
	case entities.StatusOpen:
		q["closed"] = false
		q["locked"] = false
		q["claimed"] = false
	case entities.StatusClosed:
		q["closed"] = true
	case entities.StatusLocked:
		q["closed"] = false
		q["locked"] = true
	case entities.StatusClaimed:
		q["closed"] = false
		q["locked"] = false
		q["claimed"] = true
	}

	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.Category != "" {
		q["category"] = f.Category
	}

	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		or := bson.A{
			bson.M{"type": re},
			bson.M{"member_id": re},
			bson.M{"created_by": re},
			bson.M{"claimed_by": re},
		}
		if id, err := strconv.Atoi(f.Search); err == nil {
			or = append(or, bson.M{"ticket_id": id})
		}
		q["$or"] = or
	}
	return q
}
