package tickets

import (
	"errors"

	"github.com/Jacobbrewer1/plexcord/pkg/bridge"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
)

var (
	// ErrPanelNotConfigured is returned when the category has no panel, or the
	// panel is missing a channel or role the operation needs.
	ErrPanelNotConfigured = errors.New("ticket panel not configured")

	// ErrLabelUnknown is returned when the label is not one of the panel's buttons.
	ErrLabelUnknown = errors.New("unknown ticket label")

	// ErrInvalidLabels is returned when a panel's labels cannot be routed.
	ErrInvalidLabels = errors.New("invalid panel labels")

	// ErrUnknownCategory is returned when a category name is empty or malformed.
	ErrUnknownCategory = errors.New("unknown ticket category")

	// ErrForbidden is returned when the actor lacks the panel's helper role.
	ErrForbidden = errors.New("actor is not allowed to manage tickets")

	ErrAlreadyClosed  = errors.New("ticket already closed")
	ErrAlreadyLocked  = errors.New("ticket already locked")
	ErrNotLocked      = errors.New("ticket not locked")
	ErrAlreadyClaimed = errors.New("ticket already claimed")

	// ErrNotTicket is returned when no ticket exists for the reference.
	ErrNotTicket = errors.New("not a ticket")

	// ErrTranscriptEmpty is returned when the channel history could not be
	// exported. The ticket is left open.
	ErrTranscriptEmpty = errors.New("transcript export produced nothing")

	// ErrConcurrentUpdate is returned when the ticket changed between read and write.
	ErrConcurrentUpdate = errors.New("ticket modified concurrently")

	// ErrDMRefused is returned by Chat.SendDM when the user does not accept
	// direct messages.
	ErrDMRefused = errors.New("user does not accept direct messages")

	// ErrUnknownAction is returned for an action outside close, lock, unlock and claim.
	ErrUnknownAction = errors.New("unknown ticket action")

	errTicketIDTaken = errors.New("ticket id taken")
)

// UserMessage returns the text to show the person whose request failed with err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPanelNotConfigured), errors.Is(err, ErrUnknownCategory):
		return messages.PanelNotConfigured
	case errors.Is(err, ErrLabelUnknown):
		return messages.LabelUnknown
	case errors.Is(err, ErrInvalidLabels):
		return messages.InvalidPanelLabels
	case errors.Is(err, ErrForbidden):
		return messages.Forbidden
	case errors.Is(err, ErrAlreadyClosed):
		return messages.AlreadyClosed
	case errors.Is(err, ErrAlreadyLocked):
		return messages.AlreadyLocked
	case errors.Is(err, ErrNotLocked):
		return messages.NotLocked
	case errors.Is(err, ErrAlreadyClaimed):
		return messages.AlreadyClaimed
	case errors.Is(err, ErrNotTicket):
		return messages.NotTicket
	case errors.Is(err, ErrTranscriptEmpty):
		return messages.TranscriptEmpty
	case errors.Is(err, ErrConcurrentUpdate):
		return messages.ConcurrentUpdate
	case errors.Is(err, bridge.ErrTimeout):
		return messages.Timeout
	default:
		return messages.GenericError
	}
}

// IsConflict reports whether err is a state conflict rather than a failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrNotLocked) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrConcurrentUpdate)
}
