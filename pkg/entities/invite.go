package entities

import "github.com/Jacobbrewer1/plexcord/pkg/custom"

// InviteStatus is the state of a Plex invite.
type InviteStatus string

const (
	InviteActive  InviteStatus = "active"
	InviteExpired InviteStatus = "expired"
	InviteRevoked InviteStatus = "revoked"
	InviteRemoved InviteStatus = "removed"
)

// Valid reports whether s is a known status.
func (s InviteStatus) Valid() bool {
	switch s {
	case InviteActive, InviteExpired, InviteRevoked, InviteRemoved:
		return true
	}
	return false
}

// Invite tracks Plex server access granted to a Discord member.
type Invite struct {
	// ID is the row ID.
	ID int64 `json:"id" bson:"id"`

	// Email is the Plex account email the invite was sent to.
	Email string `json:"email" bson:"email"`

	// DiscordUser is the ID of the member that requested access.
	DiscordUser string `json:"discord_user" bson:"discord_user"`

	// Status is the state of the invite.
	Status InviteStatus `json:"status" bson:"status"`

	// CreatedAt is when the invite was sent.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`

	// ExpiresAt is when access lapses. Zero means never.
	ExpiresAt custom.Datetime `json:"expires_at" bson:"expires_at"`
}
