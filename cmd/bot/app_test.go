package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/entities"
	"github.com/Jacobbrewer1/plexcord/pkg/invites"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/Jacobbrewer1/plexcord/pkg/transcript"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const (
	testGuild    = "guild"
	testHelper   = "helper-role"
	testPlexRole = "plex-role"
	testUser     = "user"
	testStaff    = "staff"
	testAdmin    = "admin"
	testPassword = "secret"
)

type sentMessage struct {
	ChannelID string
	Msg       *discordgo.MessageSend
}

// fakeChat is an in-memory tickets.Chat.
type fakeChat struct {
	mut sync.Mutex

	nextID  int
	sent    []sentMessage
	edited  []string
	deleted []string
	history map[string][]transcript.Message
	roles   map[string][]string
	ows     map[string]map[string]*discordgo.PermissionOverwrite
	dms     []sentMessage
	granted []string
	dmErr   error
	editErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		history: make(map[string][]transcript.Message),
		roles:   map[string][]string{testStaff: {testHelper}},
		ows:     make(map[string]map[string]*discordgo.PermissionOverwrite),
	}
}

func (f *fakeChat) BotID() string { return "bot" }

func (f *fakeChat) CreateChannel(_ context.Context, _ string, data discordgo.GuildChannelCreateData) (string, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	f.nextID++
	id := fmt.Sprintf("channel-%d", f.nextID)
	f.ows[id] = make(map[string]*discordgo.PermissionOverwrite)
	for _, ow := range data.PermissionOverwrites {
		cp := *ow
		f.ows[id][ow.ID] = &cp
	}
	return id, nil
}

func (f *fakeChat) DeleteChannel(_ context.Context, channelID string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Msg: msg})
	return fmt.Sprintf("message-%d", len(f.sent)), nil
}

func (f *fakeChat) EditMessage(_ context.Context, channelID, messageID string, _ *discordgo.MessageSend) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, channelID+"/"+messageID)
	return nil
}

func (f *fakeChat) SendDM(_ context.Context, userID string, msg *discordgo.MessageSend) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, sentMessage{ChannelID: userID, Msg: msg})
	return nil
}

func (f *fakeChat) AddMemberRole(_ context.Context, guildID, userID, roleID string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.granted = append(f.granted, guildID+"/"+userID+"/"+roleID)
	return nil
}

func (f *fakeChat) History(_ context.Context, channelID string) ([]transcript.Message, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.history[channelID], nil
}

func (f *fakeChat) MemberRoles(_ context.Context, _, userID string) ([]string, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.roles[userID], nil
}

func (f *fakeChat) MemberOverwrite(_ context.Context, channelID, userID string) (*discordgo.PermissionOverwrite, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	ow, ok := f.ows[channelID][userID]
	if !ok {
		return nil, nil
	}
	cp := *ow
	return &cp, nil
}

func (f *fakeChat) SetMemberOverwrite(_ context.Context, channelID string, ow *discordgo.PermissionOverwrite) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	if f.ows[channelID] == nil {
		f.ows[channelID] = make(map[string]*discordgo.PermissionOverwrite)
	}
	cp := *ow
	f.ows[channelID][ow.ID] = &cp
	return nil
}

func (f *fakeChat) DeleteMemberOverwrite(_ context.Context, channelID, userID string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	delete(f.ows[channelID], userID)
	return nil
}

func (f *fakeChat) setHistory(channelID string, msgs ...string) {
	f.mut.Lock()
	defer f.mut.Unlock()
	for n, content := range msgs {
		f.history[channelID] = append(f.history[channelID], transcript.Message{
			ID:        fmt.Sprint(n),
			AuthorID:  testUser,
			Author:    testUser,
			Content:   content,
			Timestamp: time.Unix(1700000000+int64(n), 0),
		})
	}
}

func (f *fakeChat) sentTo(channelID string) []sentMessage {
	f.mut.Lock()
	defer f.mut.Unlock()
	out := make([]sentMessage, 0)
	for _, s := range f.sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// fakeResponder records interaction responses.
type fakeResponder struct {
	mut       sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []string
}

func (f *fakeResponder) Respond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) Edit(_ *discordgo.Interaction, content string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.edits = append(f.edits, content)
	return nil
}

// last returns the text the user ended up seeing.
func (f *fakeResponder) last() string {
	f.mut.Lock()
	defer f.mut.Unlock()

	if len(f.edits) > 0 {
		return f.edits[len(f.edits)-1]
	}
	if len(f.responses) > 0 && f.responses[len(f.responses)-1].Data != nil {
		return f.responses[len(f.responses)-1].Data.Content
	}
	return ""
}

func (f *fakeResponder) reset() {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.responses = nil
	f.edits = nil
}

type fakeResolver struct{}

func (fakeResolver) UserName(_ context.Context, userID string) (string, error) {
	return "name-" + userID, nil
}

func (fakeResolver) ChannelName(_ context.Context, channelID string) (string, error) {
	if strings.HasPrefix(channelID, "deleted-") {
		return "", errors.New("unknown channel")
	}
	return "channel-name-" + channelID, nil
}

type fakePlex struct {
	mut     sync.Mutex
	invited []string
	removed []string
}

func (f *fakePlex) Invite(_ context.Context, email string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.invited = append(f.invited, email)
	return nil
}

func (f *fakePlex) Remove(_ context.Context, email string) error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.removed = append(f.removed, email)
	return nil
}

type testApp struct {
	*App
	chat    *fakeChat
	resp    *fakeResponder
	plex    *fakePlex
}

func testConfig() *config.Config {
	return &config.Config{
		GuildId:               testGuild,
		APISecret:             "test-secret",
		DashboardUser:         testAdmin,
		DashboardPassword:     testPassword,
		TokenTTL:              time.Hour,
		CloseGrace:            time.Millisecond,
		BridgeTimeout:         5 * time.Second,
		InteractionTimeout:    5 * time.Second,
		BridgeWorkers:         1,
		PlexToken:             "plex-token",
		PlexServerId:          "machine",
		PlexRoleId:            testPlexRole,
		DonationChannelId:     "donations",
		KofiVerificationToken: "kofi-token",
	}
}

func newTestApp(t *testing.T, change ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := testConfig()
	for _, c := range change {
		c(cfg)
	}

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := dataaccess.Open(context.Background(), l, dataaccess.Config{Driver: dataaccess.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.Panels.SavePanel(context.Background(), &entities.TicketPanel{
		GuildID:             testGuild,
		Category:            entities.CategoryPlex,
		CreationChannelID:   "panel-channel",
		PanelMessageID:      "panel-message",
		ParentCategoryID:    "parent",
		TranscriptChannelID: "transcripts",
		HelperRoleID:        testHelper,
		EveryoneRoleID:      testGuild,
		ButtonLabels:        []string{"support", "Plex Issue"},
	}))

	a := NewApp(l, mux.NewRouter(), cfg)
	chat := newFakeChat()
	plex := new(fakePlex)

	var provisioner invites.Provisioner
	if cfg.PlexEnabled() {
		provisioner = plex
	}
	require.NoError(t, a.attach(context.Background(), store, chat, chat, fakeResolver{}, provisioner))

	resp := new(fakeResponder)
	a.respond = resp
	a.setupRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.bridge.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testApp{App: a, chat: chat, resp: resp, plex: plex}
}

// createTicket opens a plex support ticket for testUser with some history.
func (ta *testApp) createTicket(t *testing.T) *entities.Ticket {
	t.Helper()

	tk, err := ta.manager.Create(context.Background(), tickets.CreateRequest{
		GuildID:  testGuild,
		Category: entities.CategoryPlex,
		Label:    "support",
		UserID:   testUser,
	})
	require.NoError(t, err)
	ta.chat.setHistory(tk.ChannelID, "hello", "my stream buffers")
	return tk
}
