package entities

import (
	"fmt"
	"strings"

	"github.com/Jacobbrewer1/plexcord/pkg/custom"
)

const (
	// MinTicketID is the smallest ticket number handed out.
	MinTicketID = 10000

	// MaxTicketID is the largest ticket number handed out.
	MaxTicketID = 99999

	// RequesterPermissions are the permissions a requester is given in their
	// ticket channel: view channel, send messages and read message history.
	RequesterPermissions int64 = 1<<10 | 1<<11 | 1<<16
)

// Ticket is a ticket.
type Ticket struct {
	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// ChannelID is the ID of the channel that the ticket is in.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// TicketID is the number of the ticket, unique across all tickets.
	TicketID int `json:"ticket_id" bson:"ticket_id"`

	// Category is the panel category the ticket was opened from (e.g. plex, tv, generic).
	Category string `json:"category" bson:"category"`

	// Type is the button label that opened the ticket.
	Type string `json:"type" bson:"type"`

	// MemberID is the ID of the member the ticket is for.
	MemberID string `json:"member_id" bson:"member_id"`

	// CreatedBy is the ID of the user that pressed the button.
	CreatedBy string `json:"created_by" bson:"created_by"`

	// Closed is whether the ticket has been closed.
	Closed bool `json:"closed" bson:"closed"`

	// Locked is whether the requester has been muted in the ticket.
	Locked bool `json:"locked" bson:"locked"`

	// Claimed is whether a staff member has claimed the ticket.
	Claimed bool `json:"claimed" bson:"claimed"`

	// ClaimedBy is the ID of the user that claimed the ticket.
	ClaimedBy string `json:"claimed_by,omitempty" bson:"claimed_by"`

	// ClosedBy is the ID of the user that closed the ticket.
	ClosedBy string `json:"closed_by,omitempty" bson:"closed_by"`

	// Opened is the time that the ticket was created.
	Opened custom.Datetime `json:"opened" bson:"opened"`

	// PreLock is the requester's permission overwrite from before the ticket
	// was locked. It is only meaningful while Locked is set.
	PreLock SavedOverwrite `json:"-" bson:"pre_lock"`

	// Version is incremented on every update and guards concurrent writes.
	Version int64 `json:"-" bson:"version"`
}

// SavedOverwrite is a member permission overwrite kept while a ticket is
// locked. Exists is false when the member had no overwrite.
type SavedOverwrite struct {
	Exists bool  `bson:"exists"`
	Allow  int64 `bson:"allow"`
	Deny   int64 `bson:"deny"`
}

// Name returns the channel name for the ticket.
func (t *Ticket) Name() string {
	return fmt.Sprintf("%s-%s-%d", Slug(t.Category), Slug(t.Type), t.TicketID)
}

// Status returns a single word describing the ticket's state.
func (t *Ticket) Status() string {
	switch {
	case t.Closed:
		return StatusClosed
	case t.Locked:
		return StatusLocked
	case t.Claimed:
		return StatusClaimed
	default:
		return StatusOpen
	}
}

const (
	StatusOpen    = "open"
	StatusLocked  = "locked"
	StatusClaimed = "claimed"
	StatusClosed  = "closed"
)

// Slug lowercases s and replaces anything that is not a letter or digit with a
// dash, collapsing runs.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
