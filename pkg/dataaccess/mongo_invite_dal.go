package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	inviteCollection  = "invites"
	counterCollection = "counters"
)

type mongoInviteDal struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewMongoInviteDal creates an invite data access layer backed by MongoDB.
func NewMongoInviteDal(l *slog.Logger, client *mongo.Client) InviteDal {
	return &mongoInviteDal{
		l:      l.With(slog.String(logging.KeyDal, inviteDalName)),
		client: client,
	}
}

func (d *mongoInviteDal) collection() *mongo.Collection {
	return d.client.Database(mongoDatabase).Collection(inviteCollection)
}

// nextID hands out sequential invite IDs from the counters collection.
func (d *mongoInviteDal) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := d.client.Database(mongoDatabase).Collection(counterCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inviteCollection}, bson.M{"$inc": bson.M{"seq": 1}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error getting next invite id: %w", err)
	}
	return counter.Seq, nil
}

func (d *mongoInviteDal) CreateInvite(ctx context.Context, invite *entities.Invite) error {
	defer track(inviteDalName, "create_invite", DriverMongo, inviteCollection).ObserveDuration()

	id, err := d.nextID(ctx)
	if err != nil {
		return err
	}
	invite.ID = id

	if _, err := d.collection().InsertOne(ctx, invite); err != nil {
		return fmt.Errorf("error creating invite: %w", err)
	}
	return nil
}

func (d *mongoInviteDal) GetActiveInvite(ctx context.Context, discordUser string) (*entities.Invite, error) {
	defer track(inviteDalName, "get_active_invite", DriverMongo, inviteCollection).ObserveDuration()

	opts := options.FindOne().SetSort(bson.M{"id": -1})

	invite := new(entities.Invite)
	err := d.collection().FindOne(ctx, bson.M{
		"discord_user": discordUser,
		"status":       entities.InviteActive,
	}, opts).Decode(invite)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting invite: %w", err)
	}
	return invite, nil
}

func (d *mongoInviteDal) SetInviteStatus(ctx context.Context, id int64, from, to entities.InviteStatus) error {
	defer track(inviteDalName, "set_invite_status", DriverMongo, inviteCollection).ObserveDuration()

	res, err := d.collection().UpdateOne(ctx, bson.M{"id": id, "status": from}, bson.M{"$set": bson.M{"status": to}})
	if err != nil {
		return fmt.Errorf("error updating invite: %w", err)
	} else if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (d *mongoInviteDal) ListInvites(ctx context.Context, status entities.InviteStatus) ([]*entities.Invite, error) {
	defer track(inviteDalName, "list_invites", DriverMongo, inviteCollection).ObserveDuration()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return d.find(ctx, filter, options.Find().SetSort(bson.M{"id": -1}))
}

func (d *mongoInviteDal) ListExpired(ctx context.Context, t time.Time) ([]*entities.Invite, error) {
	defer track(inviteDalName, "list_expired", DriverMongo, inviteCollection).ObserveDuration()

	return d.find(ctx, bson.M{
		"status":     entities.InviteActive,
		"expires_at": bson.M{"$gt": 0, "$lte": t.Unix()},
	}, options.Find().SetSort(bson.M{"id": 1}))
}

func (d *mongoInviteDal) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entities.Invite, error) {
	cur, err := d.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing invites: %w", err)
	}

	invites := make([]*entities.Invite, 0)
	if err := cur.All(ctx, &invites); err != nil {
		return nil, fmt.Errorf("error decoding invites: %w", err)
	}
	return invites, nil
}
