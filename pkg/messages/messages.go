// Package messages holds the text shown to Discord users and API callers.
package messages

const (
	ColorInfo    = 0x5865F2
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorError   = 0xED4245
)

const (
	GenericError        = "Something went wrong, please try again later."
	PanelNotConfigured  = "Ticket system is not configured for this category. Ask an administrator to run `/panel setup`."
	LabelUnknown        = "That ticket type is no longer available."
	Forbidden           = "You do not have permission to manage tickets."
	AlreadyClosed       = "This ticket is already closed."
	AlreadyLocked       = "This ticket is already locked."
	NotLocked           = "This ticket is not locked."
	AlreadyClaimed      = "This ticket has already been claimed."
	NotTicket           = "This channel is not a ticket."
	TranscriptEmpty     = "Could not export a transcript for this ticket. The ticket has been left open."
	ConcurrentUpdate    = "This ticket was changed by someone else, please try again."
	Timeout             = "The bot did not respond in time."
	InvalidPanelLabels  = "Button labels must be 1 to 3 unique names that are not close, lock, unlock or claim."
	PanelSaved          = "Ticket panel saved."
	AdministratorOnly   = "Only administrators can configure ticket panels."
	TicketCreated       = "Your ticket has been created: <#%s>"
	TicketLocked        = "Ticket locked by %s."
	TicketUnlocked      = "Ticket unlocked by %s."
	TicketClaimed       = "Ticket claimed by %s."
	TicketClosed        = "Ticket %d closed."
	TicketClosing       = "Ticket closed by %s. This channel will be deleted in %s."
	TicketWelcome       = "Hi <@%s>, thanks for reaching out. A member of <@&%s> will be with you shortly.\nPlease describe your issue in as much detail as you can."
	TranscriptDM        = "Here is the transcript of your ticket #%d."
	TranscriptDMRefused = "Could not send the transcript to <@%s> because they do not accept direct messages."
	PlexInviteSent      = "An invite has been sent to %s."
	PlexInviteExists    = "You already have access to the Plex server."
	PlexRoleRequired    = "You need the <@&%s> role to request Plex access."
	PlexNotConfigured   = "Plex invites are not configured."
	PlexInviteFailed    = "Could not send the Plex invite, please try again later."
	InvalidEmail        = "Please provide a valid email address."
	VerifyWelcome       = "Welcome! Press the button below to prove you are human and unlock the server."
	CaptchaPrompt       = "Type the digits shown in the image. The code expires in %s."
	CaptchaWrong        = "That code was not right. Press verify to get a new one."
	CaptchaExpired      = "Your code has expired. Press verify to get a new one."
	Verified            = "You are verified, welcome to the server!"
	AlreadyVerified     = "You are already verified."
	VerifyNotConfigured = "Member verification is not configured."
)
