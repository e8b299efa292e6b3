package main

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/Jacobbrewer1/plexcord/pkg/messages"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/Jacobbrewer1/plexcord/pkg/verify"
	"github.com/stretchr/testify/require"
)

const testVerifiedRole = "verified-role"

func newVerifyingApp(t *testing.T) *testApp {
	t.Helper()

	ta := newTestApp(t, func(c *config.Config) {
		c.VerifiedRoleId = testVerifiedRole
		c.CaptchaLength = 4
		c.CaptchaTTL = time.Minute
	})
	require.NotNil(t, ta.verifier)

	ta.verifier = verify.New(ta.Logger, ta.chat, testVerifiedRole,
		verify.WithLength(4),
		verify.WithDigitSource(func(int) []byte { return []byte{1, 2, 3, 4} }),
	)
	return ta
}

func verifyCommand(m *discordgo.Member) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   testGuild,
		ChannelID: "command-channel",
		Member:    m,
		Data:      discordgo.ApplicationCommandInteractionData{Name: verifyCmdName},
	}
}

func captchaAnswer(code string, m *discordgo.Member) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionModalSubmit,
		GuildID:   testGuild,
		ChannelID: "command-channel",
		Member:    m,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: captchaModalID,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: captchaCodeID, Value: code},
				}},
			},
		},
	}
}

func (f *fakeResponder) lastResponse(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	f.mut.Lock()
	defer f.mut.Unlock()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1]
}

func TestVerification_Flow(t *testing.T) {
	ta := newVerifyingApp(t)
	user := member(testUser)

	ta.handleInteraction(controllers(), verifyCommand(user))

	resp := ta.resp.lastResponse(t)
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Equal(t, fmt.Sprintf(messages.CaptchaPrompt, time.Minute), resp.Data.Content)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	require.Len(t, resp.Data.Files, 1)
	require.Equal(t, captchaFile, resp.Data.Files[0].Name)

	img, err := io.ReadAll(resp.Data.Files[0].Reader)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	ta.resp.reset()
	ta.handleInteraction(controllers(), buttonPress(captchaAnswerID, "command-channel", user))

	resp = ta.resp.lastResponse(t)
	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	require.Equal(t, captchaModalID, resp.Data.CustomID)
	input := resp.Data.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
	require.Equal(t, captchaCodeID, input.CustomID)
	require.Equal(t, 4, input.MaxLength)

	tests := []struct {
		name        string
		interaction *discordgo.Interaction
		want        string
		retry       bool
	}{
		{name: "wrong code", interaction: captchaAnswer("4321", user), want: messages.CaptchaWrong, retry: true},
		{name: "spent challenge", interaction: captchaAnswer("1234", user), want: messages.CaptchaExpired, retry: true},
		{name: "new challenge", interaction: buttonPress(captchaStartID, "command-channel", user), want: fmt.Sprintf(messages.CaptchaPrompt, time.Minute)},
		{name: "right code", interaction: captchaAnswer(" 1234 ", user), want: messages.Verified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta.resp.reset()
			ta.handleInteraction(controllers(), tt.interaction)
			require.Equal(t, tt.want, ta.resp.last())
			if tt.retry {
				require.Equal(t, []discordgo.MessageComponent{verifyButton}, ta.resp.lastResponse(t).Data.Components)
			}
		})
	}

	require.Equal(t, []string{testGuild + "/" + testUser + "/" + testVerifiedRole}, ta.chat.granted)
}

func TestVerification_AlreadyVerified(t *testing.T) {
	ta := newVerifyingApp(t)

	ta.handleInteraction(controllers(), verifyCommand(member(testUser, testVerifiedRole)))
	require.Equal(t, messages.AlreadyVerified, ta.resp.last())
	require.Empty(t, ta.resp.lastResponse(t).Data.Files)
}

func TestVerification_NotConfigured(t *testing.T) {
	ta := newTestApp(t)
	require.Nil(t, ta.verifier)

	tests := []struct {
		name        string
		interaction *discordgo.Interaction
	}{
		{name: "command", interaction: verifyCommand(member(testUser))},
		{name: "start button", interaction: buttonPress(captchaStartID, "command-channel", member(testUser))},
		{name: "answer button", interaction: buttonPress(captchaAnswerID, "command-channel", member(testUser))},
		{name: "answer", interaction: captchaAnswer("1234", member(testUser))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta.resp.reset()
			ta.handleInteraction(controllers(), tt.interaction)
			require.Equal(t, messages.VerifyNotConfigured, ta.resp.last())
		})
	}
	require.Empty(t, ta.chat.granted)
}

func TestHandleModal_UnknownIgnored(t *testing.T) {
	ta := newVerifyingApp(t)

	i := captchaAnswer("1234", member(testUser))
	i.Data = discordgo.ModalSubmitInteractionData{CustomID: "whitelist_modal"}
	ta.handleInteraction(controllers(), i)

	require.Empty(t, ta.resp.responses)
}

func TestMemberJoined_SendsVerifyPrompt(t *testing.T) {
	tests := []struct {
		name    string
		guildID string
		dmErr   error
		wantDMs int
	}{
		{name: "prompted", guildID: testGuild, wantDMs: 1},
		{name: "other guild", guildID: "elsewhere"},
		{name: "dms refused", guildID: testGuild, dmErr: tickets.ErrDMRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newVerifyingApp(t)
			ta.chat.dmErr = tt.dmErr

			ta.memberJoined(tt.guildID, "newcomer")

			require.Len(t, ta.chat.dms, tt.wantDMs)
			if tt.wantDMs > 0 {
				dm := ta.chat.dms[0]
				require.Equal(t, "newcomer", dm.ChannelID)
				require.Equal(t, messages.VerifyWelcome, dm.Msg.Content)
				require.Equal(t, []discordgo.MessageComponent{verifyButton}, dm.Msg.Components)
			}
		})
	}
}

func TestMemberJoined_VerificationDisabled(t *testing.T) {
	ta := newTestApp(t)
	ta.memberJoined(testGuild, "newcomer")
	require.Empty(t, ta.chat.dms)
}
