package panel

import (
	"context"
	"testing"
	"time"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/voiceroom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	guild    = "900"
	category = "901"
	creation = "902"
	owner    = "111"
	friend   = "222"
)

type fixture struct {
	mock  *platform.Mock
	reg   *voiceroom.Registry
	panel *Panel
	room  string
}

func newFixture(t *testing.T) *fixture {
	mock := platform.NewMock()
	mock.AddChannel(platform.Channel{ID: category, Name: "Voice", Kind: platform.ChannelCategory})
	mock.AddChannel(platform.Channel{ID: creation, Name: "🚪 Avengers Kanal Oluşturma", ParentID: category, Kind: platform.ChannelVoice})
	mock.AddMember(owner, "owner")
	mock.AddMember(friend, "friend")

	reg := voiceroom.NewRegistry()
	ctl := voiceroom.NewController(nil, mock, reg, voiceroom.ControllerConfig{})
	mock.Join(owner, creation)
	ch := *mock.Channels[creation]
	require.NoError(t, ctl.HandleVoiceUpdate(context.Background(), voiceroom.VoiceUpdate{
		GuildID: guild, MemberID: owner, Username: "owner", After: creation, AfterChannel: &ch,
	}))
	room, ok := reg.RoomByOwner(owner)
	require.True(t, ok)

	flows := flow.NewStore(nil, 16, time.Minute, nil, nil)
	control := voiceroom.NewControl(nil, mock, reg, voiceroom.TransferLenient)
	return &fixture{mock: mock, reg: reg, panel: NewPanel(nil, control, flows), room: room}
}

func (f *fixture) click(userID, customID string) platform.Response {
	return f.panel.Handle(context.Background(), platform.Interaction{
		GuildID:  guild,
		User:     &platform.Member{ID: userID},
		CustomID: customID,
	})
}

func (f *fixture) submit(userID, customID, value string) platform.Response {
	return f.panel.Handle(context.Background(), platform.Interaction{
		GuildID:  guild,
		User:     &platform.Member{ID: userID},
		CustomID: customID,
		Value:    value,
	})
}

func TestMessageButtonsAreHandled(t *testing.T) {
	assert := assert.New(t)

	msg := Message()
	n := 0
	for _, row := range msg.Buttons {
		for _, b := range row {
			assert.True(Handles(b.ID), b.ID)
			n++
		}
	}
	assert.Equal(7, n)
	assert.False(Handles("jail_select"))
	assert.False(Handles("reg_male"))
}

func TestLockButton(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	resp := f.click(owner, "room:unlock")
	assert.True(resp.Ephemeral)
	assert.Contains(resp.Text, "open to everyone")
	ow, _ := f.mock.OverwriteFor(f.room, guild)
	assert.Equal(platform.PermConnect, ow.Allow)

	resp = f.click(owner, "room:lock")
	assert.Contains(resp.Text, "locked")
	ow, _ = f.mock.OverwriteFor(f.room, guild)
	assert.Equal(platform.PermConnect, ow.Deny)
}

func TestButtonWithoutRoom(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	for _, id := range []string{"room:lock", "room:limit", "room:transfer"} {
		resp := f.click(friend, id)
		assert.Nil(resp.Modal, id)
		assert.Equal("❌ You need to own a private room first.", resp.Text, id)
	}
	assert.Equal(0, f.panel.Flows.Len())
}

func TestLimitForm(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	resp := f.click(owner, "room:limit")
	require.NotNil(t, resp.Modal)
	assert.Equal("roomform:limit", resp.Modal.ID)

	resp = f.submit(owner, resp.Modal.ID, "4")
	assert.Equal("👥 User limit set to 4.", resp.Text)
	assert.Equal(4, f.mock.Channels[f.room].UserLimit)

	// each form is good for one submission
	resp = f.submit(owner, "roomform:limit", "6")
	assert.Contains(resp.Text, "expired")
	assert.Equal(4, f.mock.Channels[f.room].UserLimit)
}

func TestFormValidation(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	f.click(owner, "room:limit")
	resp := f.submit(owner, "roomform:limit", "150")
	assert.Equal("❌ Enter a number between 0 and 99.", resp.Text)

	f.click(owner, "room:allow")
	resp = f.submit(owner, "roomform:allow", "my friend")
	assert.Equal("❌ Enter a valid user ID or mention.", resp.Text)
}

func TestSubmitWithoutPress(t *testing.T) {
	f := newFixture(t)
	resp := f.submit(owner, "roomform:rename", "sneaky")
	assert.Contains(t, resp.Text, "expired")
	assert.Equal(t, "🔊 owner's Room", f.mock.Channels[f.room].Name)
}

func TestRenameAllowTransfer(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	f.click(owner, "room:rename")
	resp := f.submit(owner, "roomform:rename", "Study Hall")
	assert.Equal("✏️ Room renamed to **Study Hall**.", resp.Text)
	assert.Equal("Study Hall", f.mock.Channels[f.room].Name)

	f.click(owner, "room:allow")
	resp = f.submit(owner, "roomform:allow", "<@"+friend+">")
	assert.Equal("✅ <@222> can now join your room.", resp.Text)
	ow, ok := f.mock.OverwriteFor(f.room, friend)
	assert.True(ok)
	assert.Equal(platform.PermConnect, ow.Allow)

	f.click(owner, "room:transfer")
	resp = f.submit(owner, "roomform:transfer", friend)
	assert.Equal("👑 <@222> is now the owner of your room.", resp.Text)
	got, _ := f.reg.OwnerByRoom(f.room)
	assert.Equal(friend, got)

	// former owner no longer controls it
	resp = f.click(owner, "room:lock")
	assert.Equal("❌ You need to own a private room first.", resp.Text)
}
