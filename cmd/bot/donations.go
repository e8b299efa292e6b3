package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/request"
)

// kofiPayload is the JSON Ko-fi posts in the data form field.
type kofiPayload struct {
	VerificationToken          string `json:"verification_token"`
	MessageID                  string `json:"message_id"`
	Timestamp                  string `json:"timestamp"`
	Type                       string `json:"type"`
	IsPublic                   bool   `json:"is_public"`
	FromName                   string `json:"from_name"`
	Message                    string `json:"message"`
	Amount                     string `json:"amount"`
	URL                        string `json:"url"`
	Currency                   string `json:"currency"`
	IsSubscriptionPayment      bool   `json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool   `json:"is_first_subscription_payment"`
	TierName                   string `json:"tier_name"`
}

// kofiWebhook announces Ko-fi donations in the donation channel.
func (a *App) kofiWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessageError("Invalid form", err))
		return
	}

	data := r.PostForm.Get("data")
	if data == "" {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessage("Missing data"))
		return
	}

	p := new(kofiPayload)
	if err := json.Unmarshal([]byte(data), p); err != nil {
		request.Encode(a.Logger, w, http.StatusBadRequest, request.NewMessageError("Invalid data", err))
		return
	}

	if a.cfg.KofiVerificationToken == "" ||
		subtle.ConstantTimeCompare([]byte(p.VerificationToken), []byte(a.cfg.KofiVerificationToken)) != 1 {
		request.Encode(a.Logger, w, http.StatusUnauthorized, request.NewMessage(request.ErrUnauthorized.Error()))
		return
	}

	monitoring.Donations.WithLabelValues(p.Type).Inc()

	if a.cfg.DonationChannelId == "" {
		a.Debug("Donation received with no donation channel set", slog.String("message_id", p.MessageID))
		request.Encode(a.Logger, w, http.StatusOK, request.NewMessage("ok"))
		return
	}

	if _, err := a.chat.SendMessage(r.Context(), a.cfg.DonationChannelId, donationMessage(p)); err != nil {
		a.Error("Error announcing donation",
			slog.String("message_id", p.MessageID),
			slog.String(logging.KeyError, err.Error()))
		request.Encode(a.Logger, w, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
		return
	}

	a.Info("Donation announced", slog.String("message_id", p.MessageID), slog.String("type", p.Type))
	request.Encode(a.Logger, w, http.StatusOK, request.NewMessage("ok"))
}

func donationMessage(p *kofiPayload) *discordgo.MessageSend {
	from := p.FromName
	if !p.IsPublic || from == "" {
		from = "Someone"
	}

	title := fmt.Sprintf("%s sent a %s!", from, p.Type)
	if p.IsSubscriptionPayment {
		title = fmt.Sprintf("%s subscribed!", from)
		if p.TierName != "" {
			title = fmt.Sprintf("%s subscribed to %s!", from, p.TierName)
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: messages.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Amount", Value: fmt.Sprintf("%s %s", p.Amount, p.Currency), Inline: true},
		},
	}

	if p.IsPublic && p.Message != "" {
		embed.Description = p.Message
	}

	if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		embed.Timestamp = ts.Format(time.RFC3339)
	}

	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}
