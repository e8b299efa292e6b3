package dataaccess

import (
	"context"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
)

const inviteDalName = "invite_dal"

type InviteDal interface {
	// CreateInvite inserts an invite and sets its ID.
	CreateInvite(ctx context.Context, invite *entities.Invite) error

	// GetActiveInvite gets the active invite for a member.
	GetActiveInvite(ctx context.Context, discordUser string) (*entities.Invite, error)

	// SetInviteStatus moves an invite from one status to another. ErrConflict
	// is returned if the invite is not in the from status.
	SetInviteStatus(ctx context.Context, id int64, from, to entities.InviteStatus) error

	// ListInvites lists invites with the status, or all invites if it is empty.
	ListInvites(ctx context.Context, status entities.InviteStatus) ([]*entities.Invite, error)

	// ListExpired lists active invites that expire before t.
	ListExpired(ctx context.Context, t time.Time) ([]*entities.Invite, error)
}
