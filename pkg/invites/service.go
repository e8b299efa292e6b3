// Package invites grants Plex access to guild members and takes it away again
// when they lose the Plex role, leave the guild, or their access expires.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/custom"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
)

var (
	// ErrAlreadyInvited is returned when the member already has an active invite.
	ErrAlreadyInvited = errors.New("member already has an active invite")

	// ErrInvalidEmail is returned for an address that cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidStatus is returned when listing by an unknown status.
	ErrInvalidStatus = errors.New("unknown invite status")
)

// Service tracks Plex invites.
type Service struct {
	l    *slog.Logger
	dal  dataaccess.InviteDal
	plex Provisioner
	ttl  time.Duration
	now  func() time.Time
}

// NewService creates an invite service. A zero ttl means invites never expire.
func NewService(l *slog.Logger, dal dataaccess.InviteDal, plex Provisioner, ttl time.Duration) *Service {
	return &Service{
		l:    l,
		dal:  dal,
		plex: plex,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Invite shares the server with email on behalf of a member.
func (s *Service) Invite(ctx context.Context, discordUser, email string) (*entities.Invite, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	_, err = s.dal.GetActiveInvite(ctx, discordUser)
	if err == nil {
		return nil, ErrAlreadyInvited
	} else if !errors.Is(err, dataaccess.ErrNotFound) {
		return nil, fmt.Errorf("error checking existing invite: %w", err)
	}

	if err := s.plex.Invite(ctx, addr.Address); err != nil {
		return nil, fmt.Errorf("error inviting to plex: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	inv := &entities.Invite{
		Email:       addr.Address,
		DiscordUser: discordUser,
		Status:      entities.InviteActive,
		CreatedAt:   custom.Datetime(now),
	}
	if s.ttl > 0 {
		inv.ExpiresAt = custom.Datetime(now.Add(s.ttl))
	}

	if err := s.dal.CreateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("error saving invite: %w", err)
	}

	s.l.Info("plex invite sent",
		slog.String(logging.KeyUserID, discordUser),
		slog.Int64("invite_id", inv.ID))
	return inv, nil
}

// Revoke removes access for a member who lost the Plex role.
func (s *Service) Revoke(ctx context.Context, discordUser string) error {
	return s.end(ctx, discordUser, entities.InviteRevoked)
}

// MemberLeft removes access for a member who left the guild.
func (s *Service) MemberLeft(ctx context.Context, discordUser string) error {
	return s.end(ctx, discordUser, entities.InviteRemoved)
}

func (s *Service) end(ctx context.Context, discordUser string, to entities.InviteStatus) error {
	inv, err := s.dal.GetActiveInvite(ctx, discordUser)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error getting invite: %w", err)
	}
	return s.terminate(ctx, inv, to)
}

// terminate removes Plex access and moves the invite out of active. If Plex
// cannot be reached the invite stays active so a later attempt can retry.
func (s *Service) terminate(ctx context.Context, inv *entities.Invite, to entities.InviteStatus) error {
	if err := s.plex.Remove(ctx, inv.Email); err != nil && !errors.Is(err, ErrPlexUserNotFound) {
		return fmt.Errorf("error removing plex access: %w", err)
	}

	err := s.dal.SetInviteStatus(ctx, inv.ID, entities.InviteActive, to)
	if errors.Is(err, dataaccess.ErrConflict) {
		// Someone else already ended it.
		return nil
	} else if err != nil {
		return fmt.Errorf("error updating invite: %w", err)
	}

	s.l.Info("plex access removed",
		slog.String(logging.KeyUserID, inv.DiscordUser),
		slog.Int64("invite_id", inv.ID),
		slog.String("status", string(to)))
	return nil
}

// Sweep expires every active invite past its expiry time and returns how
// many were expired.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	expired, err := s.dal.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error listing expired invites: %w", err)
	}

	var (
		n    int
		errs []error
	)
	for _, inv := range expired {
		if err := s.terminate(ctx, inv, entities.InviteExpired); err != nil {
			errs = append(errs, fmt.Errorf("invite %d: %w", inv.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.l.Error("error sweeping invites", slog.String(logging.KeyError, err.Error()))
			}
			if n > 0 {
				s.l.Info("expired invites", slog.Int("count", n))
			}
		}
	}
}

// List returns invites with the given status, or all of them.
func (s *Service) List(ctx context.Context, status entities.InviteStatus) ([]*entities.Invite, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.dal.ListInvites(ctx, status)
}
