package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/Jacobbrewer1/plexcord/pkg/verify"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// verifyCmdName is the command that starts member verification.
	verifyCmdName = "verify"

	captchaStartID  = "captcha_start"
	captchaAnswerID = "captcha_answer"
	captchaModalID  = "captcha_modal"
	captchaCodeID   = "captcha_code"

	captchaFile = "captcha.png"
)

var (
	verifyCmd = &discordgo.ApplicationCommand{
		Name:        verifyCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "Solve a CAPTCHA to unlock the server.",
	}

	verifyButton = discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Verify",
				Style:    discordgo.SuccessButton,
				CustomID: captchaStartID,
			},
		},
	}
)

func verifyCmdController(_ *App, _ string) (slashProcessor, error) {
	return func(a *App, i *discordgo.Interaction) error {
		return a.startVerification(i)
	}, nil
}

// startVerification answers with a fresh CAPTCHA image and a button that
// opens the answer form.
func (a *App) startVerification(i *discordgo.Interaction) error {
	if a.verifier == nil {
		return a.respondEphemeral(i, messages.VerifyNotConfigured)
	}

	user := interactionUser(i)
	if user == nil {
		return errors.New("interaction has no user")
	}

	if hasRole(i.Member, a.cfg.VerifiedRoleId) {
		return a.respondEphemeral(i, messages.AlreadyVerified)
	}

	img, err := a.verifier.Challenge(user.ID)
	if err != nil {
		if rErr := a.respondError(i); rErr != nil {
			a.Error("Error responding to interaction", slog.String(logging.KeyError, rErr.Error()))
		}
		return err
	}

	return a.respond.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf(messages.CaptchaPrompt, a.cfg.CaptchaTTL),
			Flags:   discordgo.MessageFlagsEphemeral,
			Files: []*discordgo.File{
				{
					Name:        captchaFile,
					ContentType: "image/png",
					Reader:      bytes.NewReader(img),
				},
			},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Enter code",
							Style:    discordgo.PrimaryButton,
							CustomID: captchaAnswerID,
						},
					},
				},
			},
		},
	})
}

// openAnswerForm shows the form the code is typed into.
func (a *App) openAnswerForm(i *discordgo.Interaction) error {
	if a.verifier == nil {
		return a.respondEphemeral(i, messages.VerifyNotConfigured)
	}

	n := a.verifier.Length()
	return a.respond.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: captchaModalID,
			Title:    "Verification",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  captchaCodeID,
							Label:     "Code",
							Style:     discordgo.TextInputShort,
							Required:  true,
							MinLength: n,
							MaxLength: n,
						},
					},
				},
			},
		},
	})
}

// submitAnswer checks the typed code and grants the verified role.
func (a *App) submitAnswer(i *discordgo.Interaction) error {
	if a.verifier == nil {
		return a.respondEphemeral(i, messages.VerifyNotConfigured)
	}

	user := interactionUser(i)
	if user == nil {
		return errors.New("interaction has no user")
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.InteractionTimeout)
	defer cancel()

	// Buttons pressed in a DM carry no guild.
	err := a.verifier.Verify(ctx, a.cfg.GuildId, user.ID, modalValue(i, captchaCodeID))

	var reply string
	switch {
	case err == nil:
		reply = messages.Verified
	case errors.Is(err, verify.ErrWrongAnswer):
		reply = messages.CaptchaWrong
	case errors.Is(err, verify.ErrNoChallenge):
		reply = messages.CaptchaExpired
	default:
		a.Error("Error verifying member",
			slog.String(logging.KeyUserID, user.ID),
			slog.String(logging.KeyError, err.Error()))
		reply = messages.GenericError
	}

	return a.respond.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    reply,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: retryComponents(err),
		},
	})
}

// retryComponents offers a new challenge after a failed answer.
func retryComponents(err error) []discordgo.MessageComponent {
	if errors.Is(err, verify.ErrWrongAnswer) || errors.Is(err, verify.ErrNoChallenge) {
		return []discordgo.MessageComponent{verifyButton}
	}
	return nil
}

// handleVerifyComponent runs the verification buttons. It reports false for
// any other component.
func (a *App) handleVerifyComponent(i *discordgo.Interaction, customID string) bool {
	var run func(*discordgo.Interaction) error
	switch customID {
	case captchaStartID:
		run = a.startVerification
	case captchaAnswerID:
		run = a.openAnswerForm
	default:
		return false
	}

	t := prometheus.NewTimer(monitoring.DiscordInteractionDuration.WithLabelValues(verifyCmdName))
	defer t.ObserveDuration()

	if err := run(i); err != nil {
		a.Error("Error handling verification", slog.String(logging.KeyCustomID, customID),
			slog.String(logging.KeyError, err.Error()))
	}
	return true
}

func (a *App) handleModal(i *discordgo.Interaction) {
	customID := i.ModalSubmitData().CustomID
	if customID != captchaModalID {
		a.Debug("Ignoring unknown modal", slog.String(logging.KeyCustomID, customID))
		return
	}

	t := prometheus.NewTimer(monitoring.DiscordInteractionDuration.WithLabelValues(verifyCmdName))
	defer t.ObserveDuration()

	if err := a.submitAnswer(i); err != nil {
		a.Error("Error handling verification answer", slog.String(logging.KeyError, err.Error()))
	}
}

// modalValue returns the trimmed value of a text input in a submitted modal.
func modalValue(i *discordgo.Interaction, id string) string {
	for _, row := range i.ModalSubmitData().Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == id {
				return strings.TrimSpace(ti.Value)
			}
		}
	}
	return ""
}

func (a *App) memberAddHandler(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	a.memberJoined(m.GuildID, m.User.ID)
}

// memberJoined sends new members the verify button in a DM.
func (a *App) memberJoined(guildID, userID string) {
	if a.verifier == nil || guildID != a.cfg.GuildId {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), memberEventTimeout)
	defer cancel()

	err := a.chat.SendDM(ctx, userID, &discordgo.MessageSend{
		Content:    messages.VerifyWelcome,
		Components: []discordgo.MessageComponent{verifyButton},
	})
	switch {
	case err == nil:
	case errors.Is(err, tickets.ErrDMRefused):
		a.Info("Member does not accept direct messages, they can run /verify instead",
			slog.String(logging.KeyUserID, userID))
	default:
		a.Error("Error sending verification prompt",
			slog.String(logging.KeyUserID, userID),
			slog.String(logging.KeyError, err.Error()))
	}
}
