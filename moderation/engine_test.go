package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/avengersguard/guard/moderation/command"
	"github.com/avengersguard/guard/moderation/guard"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/voiceroom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cmdChannel = "940"

func message(mock *platform.Mock, authorID, content string) MessageEvent {
	author, _ := mock.FetchMember(context.Background(), TestGuildID, authorID)
	return MessageEvent{
		GuildID:   TestGuildID,
		ChannelID: cmdChannel,
		MessageID: "7000",
		Author:    author,
		Content:   content,
	}
}

func TestConfigValidate(t *testing.T) {
	assert := assert.New(t)

	c := Config{}
	assert.Error(c.Validate())
	c = Config{SanctionedRoleID: "1", UnregisteredRoleID: "1"}
	assert.Error(c.Validate())
	c = Config{SanctionedRoleID: "1", UnregisteredRoleID: "2"}
	assert.NoError(c.Validate())

	_, err := NewEngine(nil, platform.NewMock(), nil, nil, nil, Config{})
	assert.Error(err)
}

func TestJailEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, c := EngineTestFixture()

	require.NoError(t, eng.ProcessMessage(ctx, message(mock, TestModeratorID, ".jail <@"+TestMemberID+">")))
	require.Len(t, mock.Components, 1)
	menu := mock.Components[0]

	resp := eng.ProcessInteraction(ctx, platform.Interaction{
		GuildID:   TestGuildID,
		ChannelID: cmdChannel,
		MessageID: menu.MessageID,
		User:      &platform.Member{ID: TestModeratorID},
		CustomID:  command.JailSelectID,
		Values:    []string{"12 hours"},
	})
	assert.True(resp.Update)
	assert.Equal([]string{TestSanctionedRoleID}, mock.RolesOf(TestMemberID))

	c.Advance(12 * time.Hour)
	assert.Equal([]string{TestUnregRoleID}, mock.RolesOf(TestMemberID))

	require.NoError(t, eng.ProcessMessage(ctx, message(mock, TestMemberID, ".cezalar")))
	last := mock.ChannelMsgs[len(mock.ChannelMsgs)-1]
	assert.Equal(cmdChannel, last.To)
	assert.Contains(last.Text, "Jail: 12 hours")
	assert.Contains(last.Text, "❌ Inactive")
}

func TestBannedWordBeatsCommand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()

	require.NoError(t, eng.ProcessMessage(ctx, message(mock, TestModeratorID, ".jail 200 join discord.gg/spam")))
	assert.Empty(mock.Components)
	assert.Equal([]string{TestSanctionedRoleID}, mock.RolesOf(TestModeratorID))
	assert.Contains(mock.Deleted, "7000")
	hist := eng.Ledger.History(TestModeratorID)
	require.Len(t, hist, 1)
	assert.Equal(guard.ReasonBannedWord, hist[0].Reason)
}

func TestUnknownInteraction(t *testing.T) {
	eng, _, _ := EngineTestFixture()
	resp := eng.ProcessInteraction(context.Background(), platform.Interaction{CustomID: "ticket:open", User: &platform.Member{ID: TestMemberID}})
	assert.True(t, resp.Ephemeral)
}

func TestPanelInteractionRouted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()

	mock.Join(TestMemberID, TestCreationID)
	ch := *mock.Channels[TestCreationID]
	require.NoError(t, eng.ProcessVoiceUpdate(ctx, voiceroom.VoiceUpdate{
		GuildID: TestGuildID, MemberID: TestMemberID, Username: "member", After: TestCreationID, AfterChannel: &ch,
	}))
	room, ok := eng.Rooms.RoomByOwner(TestMemberID)
	require.True(t, ok)

	resp := eng.ProcessInteraction(ctx, platform.Interaction{GuildID: TestGuildID, User: &platform.Member{ID: TestMemberID}, CustomID: "room:unlock"})
	assert.Contains(resp.Text, "open to everyone")
	ow, _ := mock.OverwriteFor(room, TestGuildID)
	assert.Equal(platform.PermConnect, ow.Allow)
}

func TestMemberJoin(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()

	mock.AddMember("500", "newcomer")
	eng.ProcessMemberJoin(ctx, TestGuildID, platform.Member{ID: "500", Username: "newcomer"})
	assert.Equal([]string{TestUnregRoleID}, mock.RolesOf("500"))
	assert.Equal(command.DefaultNickname, mock.Nicknames["500"])
}

func TestJailedMemberRejoins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()

	eng.Sanctions.Apply(ctx, TestGuildID, TestMemberID, TestModeratorID, "Jail: 1 day", 24*time.Hour)
	require.NoError(t, mock.Kick(ctx, TestGuildID, TestMemberID, "left"))
	mock.AddMember(TestMemberID, "member")

	eng.ProcessMemberJoin(ctx, TestGuildID, platform.Member{ID: TestMemberID, Username: "member"})
	assert.Equal([]string{TestSanctionedRoleID}, mock.RolesOf(TestMemberID))
}

func TestBannedMemberRejoinsUnregistered(t *testing.T) {
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()

	eng.Sanctions.RecordAction(ctx, TestGuildID, TestMemberID, TestModeratorID, "Kick: spam")
	require.NoError(t, mock.Kick(ctx, TestGuildID, TestMemberID, "spam"))
	mock.AddMember(TestMemberID, "member")

	eng.ProcessMemberJoin(ctx, TestGuildID, platform.Member{ID: TestMemberID, Username: "member"})
	assert.Equal(t, []string{TestUnregRoleID}, mock.RolesOf(TestMemberID))
}

func TestBotJoinGuarded(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()
	mock.Executors[platform.AuditBotAdd] = &platform.Actor{ID: TestMemberID, Tag: "member"}
	mock.AddMember("600", "spambot").Bot = true

	eng.ProcessMemberJoin(ctx, TestGuildID, platform.Member{ID: "600", Username: "spambot", Bot: true})
	assert.Contains(mock.Kicked, "600")
	assert.Equal([]string{TestSanctionedRoleID}, mock.RolesOf(TestMemberID))
}

func TestManagedRoomDeleteReleases(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _ := EngineTestFixture()
	mock.Executors[platform.AuditChannelDelete] = &platform.Actor{ID: TestMemberID, Tag: "member"}

	mock.Join(TestMemberID, TestCreationID)
	ch := *mock.Channels[TestCreationID]
	require.NoError(t, eng.ProcessVoiceUpdate(ctx, voiceroom.VoiceUpdate{
		GuildID: TestGuildID, MemberID: TestMemberID, Username: "member", After: TestCreationID, AfterChannel: &ch,
	}))
	room, _ := eng.Rooms.RoomByOwner(TestMemberID)
	deleted := *mock.Channels[room]
	require.NoError(t, mock.DeleteChannel(ctx, room))

	eng.ProcessChannelDelete(ctx, TestGuildID, deleted)
	assert.False(eng.Rooms.IsManaged(room))
	// owner deleting their own room is not a guard violation
	assert.Empty(eng.Ledger.History(TestMemberID))
	assert.Nil(mock.Channels[room])
}

func TestPanicRecovered(t *testing.T) {
	eng, _, _ := EngineTestFixture()
	eng.Guard = nil
	assert.NotPanics(t, func() {
		eng.ProcessRoleCreate(context.Background(), TestGuildID, platform.Role{ID: "1"})
	})
	eng.Commands = nil
	resp := eng.ProcessInteraction(context.Background(), platform.Interaction{CustomID: command.JailSelectID})
	assert.Contains(t, resp.Text, "Something went wrong")
}
