package tickets

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/pkg/transcript"
)

type sentMessage struct {
	ChannelID string
	Msg       *discordgo.MessageSend
	Files     map[string][]byte
}

// fakeChat is an in-memory Chat.
type fakeChat struct {
	mut sync.Mutex

	nextID     int
	channels   map[string]discordgo.GuildChannelCreateData
	deleted    []string
	overwrites map[string]map[string]*discordgo.PermissionOverwrite
	sent       []sentMessage
	edited     []sentMessage
	dms        []sentMessage
	history    map[string][]transcript.Message
	roles      map[string][]string

	historyErr error
	dmErr      error
	createErr  error
	sendErr    map[string]error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		channels:   make(map[string]discordgo.GuildChannelCreateData),
		overwrites: make(map[string]map[string]*discordgo.PermissionOverwrite),
		history:    make(map[string][]transcript.Message),
		roles:      make(map[string][]string),
		sendErr:    make(map[string]error),
	}
}

func (f *fakeChat) BotID() string { return "bot" }

func (f *fakeChat) CreateChannel(_ context.Context, _ string, data discordgo.GuildChannelCreateData) (string, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}

	f.nextID++
	id := fmt.Sprintf("channel-%d", f.nextID)
	f.channels[id] = data

	f.overwrites[id] = make(map[string]*discordgo.PermissionOverwrite)
	for _, ow := range data.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeMember {
			cp := *ow
			f.overwrites[id][ow.ID] = &cp
		}
	}
	return id, nil
}

func (f *fakeChat) DeleteChannel(_ context.Context, channelID string) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return nil
}

func readFiles(msg *discordgo.MessageSend) map[string][]byte {
	files := make(map[string][]byte, len(msg.Files))
	for _, file := range msg.Files {
		b, _ := io.ReadAll(file.Reader)
		files[file.Name] = b
	}
	return files
}

func (f *fakeChat) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if err := f.sendErr[channelID]; err != nil {
		return "", err
	}

	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Msg: msg, Files: readFiles(msg)})
	return fmt.Sprintf("message-%d", len(f.sent)), nil
}

func (f *fakeChat) EditMessage(_ context.Context, channelID, messageID string, msg *discordgo.MessageSend) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	if err := f.sendErr[channelID]; err != nil {
		return err
	}
	f.edited = append(f.edited, sentMessage{ChannelID: channelID + "/" + messageID, Msg: msg})
	return nil
}

func (f *fakeChat) SendDM(_ context.Context, userID string, msg *discordgo.MessageSend) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.dmErr != nil {
		return f.dmErr
	}

	f.dms = append(f.dms, sentMessage{ChannelID: userID, Msg: msg, Files: readFiles(msg)})
	return nil
}

func (f *fakeChat) History(_ context.Context, channelID string) ([]transcript.Message, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.historyErr != nil {
		return nil, f.historyErr
	}
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

	ow, ok := f.overwrites[channelID][userID]
	if !ok {
		return nil, nil
	}
	cp := *ow
	return &cp, nil
}

func (f *fakeChat) SetMemberOverwrite(_ context.Context, channelID string, ow *discordgo.PermissionOverwrite) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.overwrites[channelID] == nil {
		f.overwrites[channelID] = make(map[string]*discordgo.PermissionOverwrite)
	}
	cp := *ow
	f.overwrites[channelID][ow.ID] = &cp
	return nil
}

func (f *fakeChat) DeleteMemberOverwrite(_ context.Context, channelID, userID string) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	delete(f.overwrites[channelID], userID)
	return nil
}

func (f *fakeChat) overwrite(channelID, userID string) *discordgo.PermissionOverwrite {
	f.mut.Lock()
	defer f.mut.Unlock()

	ow := f.overwrites[channelID][userID]
	if ow == nil {
		return nil
	}
	cp := *ow
	return &cp
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

func (f *fakeChat) deletedChannels() []string {
	f.mut.Lock()
	defer f.mut.Unlock()
	return append([]string(nil), f.deleted...)
}
