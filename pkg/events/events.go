// Package events publishes ticket lifecycle events.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TicketCreated  = "ticket.created"
	TicketLocked   = "ticket.locked"
	TicketUnlocked = "ticket.unlocked"
	TicketClaimed  = "ticket.claimed"
	TicketClosed   = "ticket.closed"
	TicketDeleted  = "ticket.deleted"
)

// Event is a ticket state change.
type Event struct {
	Type      string    `json:"type"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	TicketID  int       `json:"ticket_id"`
	Category  string    `json:"category"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mut    sync.Mutex
	events []*Event
}

func (r *Recorder) Publish(_ context.Context, e *Event) error {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the type of each recorded event, in order.
func (r *Recorder) Types() []string {
	r.mut.Lock()
	defer r.mut.Unlock()

	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
