package tickets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/custom"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/events"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/transcript"
)

const (
	// DefaultCloseGrace is how long a closed ticket channel stays before deletion.
	DefaultCloseGrace = 10 * time.Second

	// DashboardActorPrefix marks actor IDs that come from the web API.
	DashboardActorPrefix = "dashboard:"

	// maxIDAttempts bounds the search for an unused ticket number.
	maxIDAttempts = 50

	// maxCreateAttempts bounds retries when a ticket number is taken between
	// the check and the insert.
	maxCreateAttempts = 3

	// deleteTimeout bounds the delayed channel deletion.
	deleteTimeout = 30 * time.Second
)

const (
	memberAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
)

// Actor is whoever triggered an operation.
type Actor struct {
	// ID is the Discord user ID, or a DashboardActorPrefix name.
	ID string

	// Staff skips the helper role check. Set for authenticated dashboard users.
	Staff bool
}

// DashboardActor returns the actor for an authenticated dashboard user.
func DashboardActor(username string) Actor {
	return Actor{ID: DashboardActorPrefix + username, Staff: true}
}

// Ref identifies a ticket either by channel or by ticket number.
type Ref struct {
	GuildID   string
	ChannelID string
	TicketID  int

	// Category, if set, must match the ticket's category.
	Category string
}

// CreateRequest asks for a new ticket.
type CreateRequest struct {
	GuildID  string
	Category string
	Label    string
	UserID   string
}

// Result is the outcome of a management action.
type Result struct {
	Ticket  *entities.Ticket
	Message string
}

// Scheduler runs f after d.
type Scheduler func(d time.Duration, f func())

// Option configures a Manager.
type Option func(*Manager)

// WithCloseGrace sets the delay between closing a ticket and deleting its channel.
func WithCloseGrace(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// WithScheduler replaces time.AfterFunc for delayed deletion.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.schedule = s }
}

// WithTicketIDs replaces the ticket number generator.
func WithTicketIDs(f func() int) Option {
	return func(m *Manager) { m.newID = f }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager runs every ticket transition. Transitions on one ticket are
// serialised, and every write is a compare-and-swap on the ticket's version.
type Manager struct {
	l        *slog.Logger
	panels   dataaccess.PanelDal
	tickets  dataaccess.TicketDal
	chat     Chat
	exporter *transcript.Exporter
	events   events.Publisher
	locks    *keyedMutex

	grace    time.Duration
	schedule Scheduler
	newID    func() int
	now      func() time.Time
}

// NewManager creates a ticket manager.
func NewManager(l *slog.Logger, panels dataaccess.PanelDal, tickets dataaccess.TicketDal, chat Chat, opts ...Option) *Manager {
	m := &Manager{
		l:        l,
		panels:   panels,
		tickets:  tickets,
		chat:     chat,
		exporter: transcript.NewExporter(),
		events:   events.Nop{},
		locks:    newKeyedMutex(),
		grace:    DefaultCloseGrace,
		schedule: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		newID:    randomTicketID,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func randomTicketID() int {
	return entities.MinTicketID + rand.IntN(entities.MaxTicketID-entities.MinTicketID+1)
}

// Create opens a ticket for the user from the panel button with the given label.
// If the ticket row cannot be stored the new channel is deleted again.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (t *entities.Ticket, err error) {
	defer func() { observe(req.Category, "create", err) }()

	if err := ValidateCategory(req.Category); err != nil {
		return nil, err
	}

	panel, err := m.panel(ctx, req.GuildID, req.Category)
	if err != nil {
		return nil, err
	}

	if !panel.HasLabel(req.Label) {
		return nil, fmt.Errorf("%w: %q", ErrLabelUnknown, req.Label)
	}

	switch {
	case panel.ParentCategoryID == "":
		return nil, fmt.Errorf("%w: no parent category", ErrPanelNotConfigured)
	case panel.HelperRoleID == "":
		return nil, fmt.Errorf("%w: no helper role", ErrPanelNotConfigured)
	case panel.TranscriptChannelID == "":
		return nil, fmt.Errorf("%w: no transcript channel", ErrPanelNotConfigured)
	}

	for attempt := 1; ; attempt++ {
		t, err = m.open(ctx, panel, req)
		if !errors.Is(err, errTicketIDTaken) || attempt == maxCreateAttempts {
			break
		}
		m.l.Warn("ticket id taken by another ticket, retrying",
			slog.Int("attempt", attempt),
			slog.String(logging.KeyError, err.Error()))
	}
	if err != nil {
		return nil, err
	}

	l := m.l.With(
		slog.String(logging.KeyGuildID, t.GuildID),
		slog.Int(logging.KeyTicketID, t.TicketID),
		slog.String(logging.KeyUserID, t.MemberID),
	)

	if _, err := m.chat.SendMessage(ctx, t.ChannelID, controlMessage(t, panel)); err != nil {
		l.Warn("error posting ticket controls", slog.String(logging.KeyError, err.Error()))
	}

	m.publish(ctx, events.TicketCreated, t, req.UserID)
	l.Info("ticket created", slog.String(logging.KeyChannelID, t.ChannelID))
	return t, nil
}

// open allocates a ticket number, creates the channel and stores the row.
func (m *Manager) open(ctx context.Context, panel *entities.TicketPanel, req CreateRequest) (*entities.Ticket, error) {
	id, err := m.allocateID(ctx)
	if err != nil {
		return nil, err
	}

	t := &entities.Ticket{
		GuildID:   req.GuildID,
		TicketID:  id,
		Category:  req.Category,
		Type:      req.Label,
		MemberID:  req.UserID,
		CreatedBy: req.UserID,
		Opened:    custom.Datetime(m.now().UTC().Truncate(time.Second)),
	}

	l := m.l.With(
		slog.String(logging.KeyGuildID, t.GuildID),
		slog.Int(logging.KeyTicketID, t.TicketID),
		slog.String(logging.KeyUserID, t.MemberID),
	)

	channelID, err := m.chat.CreateChannel(ctx, req.GuildID, discordgo.GuildChannelCreateData{
		Name:                 t.Name(),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                fmt.Sprintf("%s ticket #%d for <@%s>", t.Type, t.TicketID, t.MemberID),
		ParentID:             panel.ParentCategoryID,
		PermissionOverwrites: m.overwrites(panel, req),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating ticket channel: %w", err)
	}
	t.ChannelID = channelID

	if err := m.tickets.CreateTicket(ctx, t); err != nil {
		// The channel would otherwise exist with nothing tracking it.
		if delErr := m.chat.DeleteChannel(context.WithoutCancel(ctx), channelID); delErr != nil {
			l.Error("error deleting untracked ticket channel",
				slog.String(logging.KeyChannelID, channelID),
				slog.String(logging.KeyError, delErr.Error()))
		}

		if errors.Is(err, dataaccess.ErrDuplicate) {
			// Another ticket took the number between the check and the insert.
			if taken, _ := m.tickets.TicketIDExists(context.WithoutCancel(ctx), id); taken {
				return nil, fmt.Errorf("%w: %w", errTicketIDTaken, err)
			}
		}
		return nil, fmt.Errorf("error saving ticket: %w", err)
	}
	return t, nil
}

func (m *Manager) overwrites(panel *entities.TicketPanel, req CreateRequest) []*discordgo.PermissionOverwrite {
	everyone := panel.EveryoneRoleID
	if everyone == "" {
		everyone = req.GuildID
	}

	ows := []*discordgo.PermissionOverwrite{
		{
			ID:   everyone,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    req.UserID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow,
		},
		{
			ID:    panel.HelperRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAllow,
		},
	}

	if bot := m.chat.BotID(); bot != "" {
		ows = append(ows, &discordgo.PermissionOverwrite{
			ID:    bot,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionAll,
		})
	}
	return ows
}

func (m *Manager) allocateID(ctx context.Context) (int, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := m.newID()
		if id < entities.MinTicketID || id > entities.MaxTicketID {
			continue
		}

		exists, err := m.tickets.TicketIDExists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("error checking ticket id: %w", err)
		} else if !exists {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no free ticket id after %d attempts", maxIDAttempts)
}

// Lock stops the requester sending messages in the ticket.
func (m *Manager) Lock(ctx context.Context, ref Ref, actor Actor) (*Result, error) {
	return m.Apply(ctx, ref, ActionLock, actor)
}

// Unlock restores the requester's permission to send messages.
func (m *Manager) Unlock(ctx context.Context, ref Ref, actor Actor) (*Result, error) {
	return m.Apply(ctx, ref, ActionUnlock, actor)
}

// Claim marks the actor as handling the ticket.
func (m *Manager) Claim(ctx context.Context, ref Ref, actor Actor) (*Result, error) {
	return m.Apply(ctx, ref, ActionClaim, actor)
}

// Close exports the transcript, delivers it, marks the ticket closed and
// schedules the channel for deletion. If the export fails the ticket is left
// open.
func (m *Manager) Close(ctx context.Context, ref Ref, actor Actor) (*Result, error) {
	return m.Apply(ctx, ref, ActionClose, actor)
}

// Apply runs a management action.
func (m *Manager) Apply(ctx context.Context, ref Ref, action Action, actor Actor) (res *Result, err error) {
	category := ref.Category
	defer func() { observe(category, string(action), err) }()

	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	found, err := m.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	category = found.Category

	unlock := m.locks.Lock(found.GuildID + "/" + found.ChannelID)
	defer unlock()

	// Re-read now nothing else can change it.
	t, err := m.tickets.GetTicket(ctx, found.GuildID, found.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	if ref.Category != "" && ref.Category != t.Category {
		return nil, fmt.Errorf("%w: ticket is %s, not %s", ErrNotTicket, t.Category, ref.Category)
	}

	panel, err := m.panel(ctx, t.GuildID, t.Category)
	if err != nil {
		return nil, err
	}

	if err := m.authorise(ctx, panel, t, actor); err != nil {
		return nil, err
	}

	l := m.l.With(
		slog.String(logging.KeyGuildID, t.GuildID),
		slog.String(logging.KeyChannelID, t.ChannelID),
		slog.Int(logging.KeyTicketID, t.TicketID),
		slog.String("action", string(action)),
		slog.String("actor", actor.ID),
	)

	switch action {
	case ActionLock:
		res, err = m.lock(ctx, l, t, actor)
	case ActionUnlock:
		res, err = m.unlock(ctx, l, t, actor)
	case ActionClaim:
		res, err = m.claim(ctx, l, t, actor)
	case ActionClose:
		res, err = m.close(ctx, l, panel, t, actor)
	}
	if err != nil {
		return nil, err
	}

	l.Info("ticket updated")
	return res, nil
}

func (m *Manager) lookup(ctx context.Context, ref Ref) (*entities.Ticket, error) {
	var (
		t   *entities.Ticket
		err error
	)
	switch {
	case ref.TicketID != 0:
		t, err = m.tickets.GetTicketByID(ctx, ref.TicketID)
	case ref.ChannelID != "":
		t, err = m.tickets.GetTicket(ctx, ref.GuildID, ref.ChannelID)
	default:
		return nil, ErrNotTicket
	}

	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, ErrNotTicket
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	if ref.GuildID != "" && ref.GuildID != t.GuildID {
		return nil, ErrNotTicket
	}
	return t, nil
}

func (m *Manager) panel(ctx context.Context, guildID, category string) (*entities.TicketPanel, error) {
	panel, err := m.panels.GetPanel(ctx, guildID, category)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPanelNotConfigured, category)
	} else if err != nil {
		return nil, fmt.Errorf("error getting panel: %w", err)
	}
	return panel, nil
}

func (m *Manager) authorise(ctx context.Context, panel *entities.TicketPanel, t *entities.Ticket, actor Actor) error {
	if actor.Staff {
		return nil
	}

	if panel.HelperRoleID == "" {
		return fmt.Errorf("%w: no helper role", ErrPanelNotConfigured)
	}

	roles, err := m.chat.MemberRoles(ctx, t.GuildID, actor.ID)
	if err != nil {
		return fmt.Errorf("error getting actor roles: %w", err)
	}

	if !slices.Contains(roles, panel.HelperRoleID) {
		return ErrForbidden
	}
	return nil
}

func (m *Manager) lock(ctx context.Context, l *slog.Logger, t *entities.Ticket, actor Actor) (*Result, error) {
	switch {
	case t.Closed:
		return nil, ErrAlreadyClosed
	case t.Locked:
		return nil, ErrAlreadyLocked
	}

	ow, err := m.chat.MemberOverwrite(ctx, t.ChannelID, t.MemberID)
	if err != nil {
		return nil, err
	}

	saved := SaveOverwrite(ow)
	if err := m.chat.SetMemberOverwrite(ctx, t.ChannelID, LockOverwrite(ow, t.MemberID)); err != nil {
		return nil, err
	}

	t.Locked = true
	t.PreLock = saved
	if err := m.save(ctx, t); err != nil {
		m.restoreOverwrite(l, t.ChannelID, t.MemberID, saved)
		return nil, err
	}

	return m.finish(ctx, l, t, actor, events.TicketLocked, fmt.Sprintf(messages.TicketLocked, mention(actor.ID))), nil
}

func (m *Manager) unlock(ctx context.Context, l *slog.Logger, t *entities.Ticket, actor Actor) (*Result, error) {
	switch {
	case t.Closed:
		return nil, ErrAlreadyClosed
	case !t.Locked:
		return nil, ErrNotLocked
	}

	ow, err := m.chat.MemberOverwrite(ctx, t.ChannelID, t.MemberID)
	if err != nil {
		return nil, err
	}

	saved := t.PreLock
	if err := m.applyOverwrite(ctx, t.ChannelID, t.MemberID, saved); err != nil {
		return nil, err
	}

	t.Locked = false
	t.PreLock = entities.SavedOverwrite{}
	if err := m.save(ctx, t); err != nil {
		t.Locked = true
		t.PreLock = saved
		m.restoreOverwrite(l, t.ChannelID, t.MemberID, SaveOverwrite(ow))
		return nil, err
	}

	return m.finish(ctx, l, t, actor, events.TicketUnlocked, fmt.Sprintf(messages.TicketUnlocked, mention(actor.ID))), nil
}

func (m *Manager) claim(ctx context.Context, l *slog.Logger, t *entities.Ticket, actor Actor) (*Result, error) {
	switch {
	case t.Closed:
		return nil, ErrAlreadyClosed
	case t.Claimed:
		return nil, fmt.Errorf("%w by %s", ErrAlreadyClaimed, t.ClaimedBy)
	}

	t.Claimed = true
	t.ClaimedBy = actor.ID
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}

	return m.finish(ctx, l, t, actor, events.TicketClaimed, fmt.Sprintf(messages.TicketClaimed, mention(actor.ID))), nil
}

func (m *Manager) close(ctx context.Context, l *slog.Logger, panel *entities.TicketPanel, t *entities.Ticket, actor Actor) (*Result, error) {
	if t.Closed {
		return nil, ErrAlreadyClosed
	}

	if panel.TranscriptChannelID == "" {
		return nil, fmt.Errorf("%w: no transcript channel", ErrPanelNotConfigured)
	}

	html, err := m.export(ctx, t)
	if err != nil {
		return nil, err
	}

	embed := transcriptEmbed(t, actor.ID)
	filename := fmt.Sprintf("transcript-%s.html", t.Name())

	_, err = m.chat.SendMessage(ctx, panel.TranscriptChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files:  []*discordgo.File{{Name: filename, ContentType: "text/html", Reader: bytes.NewReader(html)}},
	})
	if err != nil {
		return nil, fmt.Errorf("error posting transcript: %w", err)
	}

	err = m.chat.SendDM(ctx, t.MemberID, &discordgo.MessageSend{
		Content: fmt.Sprintf(messages.TranscriptDM, t.TicketID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files:   []*discordgo.File{{Name: filename, ContentType: "text/html", Reader: bytes.NewReader(html)}},
	})
	if err != nil {
		l.Warn("error sending transcript to requester", slog.String(logging.KeyError, err.Error()))
		notice := &discordgo.MessageSend{Content: fmt.Sprintf(messages.TranscriptDMRefused, t.MemberID)}
		if _, err := m.chat.SendMessage(ctx, panel.TranscriptChannelID, notice); err != nil {
			l.Error("error posting transcript fallback notice", slog.String(logging.KeyError, err.Error()))
		}
	}

	t.Closed = true
	t.ClosedBy = actor.ID
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}

	notice := fmt.Sprintf(messages.TicketClosing, mention(actor.ID), m.grace)
	res := m.finish(ctx, l, t, actor, events.TicketClosed, notice)
	res.Message = fmt.Sprintf(messages.TicketClosed, t.TicketID)

	m.scheduleDelete(t, actor)
	return res, nil
}

func (m *Manager) export(ctx context.Context, t *entities.Ticket) ([]byte, error) {
	history, err := m.chat.History(ctx, t.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptEmpty, err)
	}

	html, err := m.exporter.Export(transcript.Meta{
		Title:    fmt.Sprintf("Ticket #%d: %s", t.TicketID, t.Type),
		Guild:    t.GuildID,
		Channel:  t.Name(),
		Exported: m.now(),
	}, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptEmpty, err)
	}

	transcriptBytes.Observe(float64(len(html)))
	return html, nil
}

func (m *Manager) scheduleDelete(t *entities.Ticket, actor Actor) {
	ticket := *t
	m.schedule(m.grace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()

		if err := m.chat.DeleteChannel(ctx, ticket.ChannelID); err != nil {
			m.l.Error("error deleting closed ticket channel",
				slog.String(logging.KeyChannelID, ticket.ChannelID),
				slog.Int(logging.KeyTicketID, ticket.TicketID),
				slog.String(logging.KeyError, err.Error()))
			return
		}
		m.publish(ctx, events.TicketDeleted, &ticket, actor.ID)
	})
}

func (m *Manager) save(ctx context.Context, t *entities.Ticket) error {
	err := m.tickets.UpdateTicket(ctx, t)
	if errors.Is(err, dataaccess.ErrConflict) {
		return ErrConcurrentUpdate
	} else if err != nil {
		return fmt.Errorf("error saving ticket: %w", err)
	}
	return nil
}

func (m *Manager) restoreOverwrite(l *slog.Logger, channelID, memberID string, saved entities.SavedOverwrite) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	if err := m.applyOverwrite(ctx, channelID, memberID, saved); err != nil {
		l.Error("error restoring permission overwrite", slog.String(logging.KeyError, err.Error()))
	}
}

// applyOverwrite writes a saved overwrite back, deleting the member's
// overwrite when none was saved.
func (m *Manager) applyOverwrite(ctx context.Context, channelID, memberID string, saved entities.SavedOverwrite) error {
	ow := RestoreOverwrite(saved, memberID)
	if ow == nil {
		return m.chat.DeleteMemberOverwrite(ctx, channelID, memberID)
	}
	return m.chat.SetMemberOverwrite(ctx, channelID, ow)
}

// finish posts the notice in the ticket channel and publishes the event.
func (m *Manager) finish(ctx context.Context, l *slog.Logger, t *entities.Ticket, actor Actor, event, notice string) *Result {
	if _, err := m.chat.SendMessage(ctx, t.ChannelID, &discordgo.MessageSend{Content: notice}); err != nil {
		l.Warn("error posting ticket notice", slog.String(logging.KeyError, err.Error()))
	}

	m.publish(ctx, event, t, actor.ID)
	return &Result{Ticket: t, Message: notice}
}

func (m *Manager) publish(ctx context.Context, eventType string, t *entities.Ticket, actorID string) {
	err := m.events.Publish(ctx, &events.Event{
		Type:      eventType,
		GuildID:   t.GuildID,
		ChannelID: t.ChannelID,
		TicketID:  t.TicketID,
		Category:  t.Category,
		ActorID:   actorID,
		Timestamp: m.now().UTC(),
	})
	if err != nil {
		m.l.Warn("error publishing ticket event",
			slog.String("type", eventType),
			slog.String(logging.KeyError, err.Error()))
	}
}

// LockOverwrite returns the member's overwrite with sending messages denied.
// A nil ow is treated as an empty overwrite.
func LockOverwrite(ow *discordgo.PermissionOverwrite, memberID string) *discordgo.PermissionOverwrite {
	cp := discordgo.PermissionOverwrite{ID: memberID, Type: discordgo.PermissionOverwriteTypeMember}
	if ow != nil {
		cp.Allow, cp.Deny = ow.Allow, ow.Deny
	}
	cp.Allow &^= discordgo.PermissionSendMessages
	cp.Deny |= discordgo.PermissionSendMessages
	return &cp
}

// SaveOverwrite records ow so RestoreOverwrite can put it back.
func SaveOverwrite(ow *discordgo.PermissionOverwrite) entities.SavedOverwrite {
	if ow == nil {
		return entities.SavedOverwrite{}
	}
	return entities.SavedOverwrite{Exists: true, Allow: ow.Allow, Deny: ow.Deny}
}

// RestoreOverwrite returns the overwrite recorded by SaveOverwrite, or nil if
// the member had none.
func RestoreOverwrite(saved entities.SavedOverwrite, memberID string) *discordgo.PermissionOverwrite {
	if !saved.Exists {
		return nil
	}
	return &discordgo.PermissionOverwrite{
		ID:    memberID,
		Type:  discordgo.PermissionOverwriteTypeMember,
		Allow: saved.Allow,
		Deny:  saved.Deny,
	}
}
