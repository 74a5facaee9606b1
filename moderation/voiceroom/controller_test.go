package voiceroom

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"testing"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild = "900"
	category  = "901"
	creation  = "902"
	lobby     = "903"

	alice = "111"
	bob   = "222"
	carol = "333"
)

type roomFixture struct {
	mock *platform.Mock
	reg  *Registry
	ctl  *Controller
}

func newRoomFixture() *roomFixture {
	mock := platform.NewMock()
	mock.AddChannel(platform.Channel{ID: category, Name: "Voice", Kind: platform.ChannelCategory})
	mock.AddChannel(platform.Channel{ID: creation, Name: "➕ Avengers Kanal Oluşturma", ParentID: category, Kind: platform.ChannelVoice})
	mock.AddChannel(platform.Channel{ID: lobby, Name: "Lobby", ParentID: category, Kind: platform.ChannelVoice})
	for id, name := range map[string]string{alice: "alice", bob: "bob", carol: "carol"} {
		mock.AddMember(id, name)
	}
	reg := NewRegistry()
	return &roomFixture{
		mock: mock,
		reg:  reg,
		ctl:  NewController(slog.Default(), mock, reg, ControllerConfig{}),
	}
}

// Moves a member on the mock and delivers the resulting voice update.
func (f *roomFixture) move(memberID, channelID string) error {
	before := f.mock.Join(memberID, channelID)
	var after *platform.Channel
	if ch, ok := f.mock.Channels[channelID]; ok {
		c := *ch
		after = &c
	}
	name := memberID
	if mem, ok := f.mock.Members[memberID]; ok {
		name = mem.Username
	}
	return f.ctl.HandleVoiceUpdate(context.Background(), VoiceUpdate{
		GuildID:      testGuild,
		MemberID:     memberID,
		Username:     name,
		Before:       before,
		After:        channelID,
		AfterChannel: after,
	})
}

func (f *roomFixture) location(memberID string) string {
	ch, _ := f.mock.VoiceChannelOf(context.Background(), testGuild, memberID)
	return ch
}

func TestCreateRoomOnEntry(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, ok := f.reg.RoomByOwner(alice)
	require.True(t, ok)

	ch := f.mock.Channels[room]
	require.NotNil(t, ch)
	assert.Equal("🔊 alice's Room", ch.Name)
	assert.Equal(category, ch.ParentID)
	assert.Equal(platform.ChannelVoice, ch.Kind)

	own, ok := f.mock.OverwriteFor(room, alice)
	assert.True(ok)
	assert.Equal(platform.PermConnect|platform.PermManageChannels, own.Allow)
	everyone, ok := f.mock.OverwriteFor(room, testGuild)
	assert.True(ok)
	assert.Equal(platform.PermConnect, everyone.Deny)

	assert.Equal(room, f.location(alice))
	assert.True(f.reg.IsManaged(room))
}

func TestCreationChannelMatchedByID(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()
	f.ctl = NewController(nil, f.mock, f.reg, ControllerConfig{CreationChannelID: lobby})

	assert.NoError(f.move(alice, creation))
	assert.Equal(0, f.reg.Len())
	assert.NoError(f.move(alice, lobby))
	assert.Equal(1, f.reg.Len())
}

func TestReentryIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()
	// member stays in the creation channel
	f.mock.Fail["MoveMember"] = fmt.Errorf("missing permissions")

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	count := f.mock.VoiceChannelCount()

	require.NoError(t, f.move(alice, ""))
	require.NoError(t, f.move(alice, creation))
	require.NoError(t, f.move(alice, creation))

	assert.Equal(count, f.mock.VoiceChannelCount())
	again, _ := f.reg.RoomByOwner(alice)
	assert.Equal(room, again)
}

func TestStaleRoomPurged(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	old, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(alice, lobby))
	// lobby hop emptied the room
	assert.Equal(StateDestroyed, f.reg.State(old))

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	// deleted out from under us by someone else
	require.NoError(t, f.mock.DeleteChannel(context.Background(), room))
	require.NoError(t, f.mock.MoveMember(context.Background(), testGuild, alice, lobby))

	require.NoError(t, f.move(alice, creation))
	fresh, ok := f.reg.RoomByOwner(alice)
	assert.True(ok)
	assert.NotEqual(room, fresh)
	assert.Equal(StateDestroyed, f.reg.State(room))
	assert.NotNil(f.mock.Channels[fresh])
}

func TestExistenceCheckFailureCreatesNothing(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()
	f.mock.Fail["MoveMember"] = fmt.Errorf("missing permissions")

	require.NoError(t, f.move(alice, creation))
	count := f.mock.VoiceChannelCount()
	f.mock.Fail["ChannelExists"] = fmt.Errorf("gateway timeout")

	assert.Error(f.move(alice, creation))
	assert.Equal(count, f.mock.VoiceChannelCount())
	assert.Equal(1, f.reg.Len())
}

func TestEmptyRoomDeleted(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(bob, room))
	require.NoError(t, f.move(bob, ""))
	assert.NotNil(f.mock.Channels[room])

	require.NoError(t, f.move(alice, ""))
	assert.Nil(f.mock.Channels[room])
	assert.Contains(f.mock.Deleted, room)
	assert.False(f.reg.IsManaged(room))
	_, ok := f.reg.RoomByOwner(alice)
	assert.False(ok)
}

func TestOwnerDepartureTransfers(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(bob, room))

	require.NoError(t, f.move(alice, lobby))
	owner, ok := f.reg.OwnerByRoom(room)
	assert.True(ok)
	assert.Equal(bob, owner)
	assert.NotNil(f.mock.Channels[room])
	_, ok = f.reg.RoomByOwner(alice)
	assert.False(ok)
	dms := f.mock.DMsTo(bob)
	require.Len(t, dms, 1)
	assert.Contains(dms[0], "<#"+room+">")
}

func TestNonOwnerDepartureKeepsOwner(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(bob, room))
	require.NoError(t, f.move(carol, room))
	require.NoError(t, f.move(bob, lobby))

	owner, _ := f.reg.OwnerByRoom(room)
	assert.Equal(alice, owner)
	assert.Empty(f.mock.DMs)
}

func TestAbsentOwnerSurvivesOtherDepartures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newRoomFixture()
	ctl := NewControl(nil, f.mock, f.reg, TransferLenient)

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(bob, room))

	// handed to a member who is not connected
	_, err := ctl.Transfer(ctx, testGuild, alice, carol)
	require.NoError(t, err)

	require.NoError(t, f.move(bob, lobby))
	owner, _ := f.reg.OwnerByRoom(room)
	assert.Equal(carol, owner)

	require.NoError(t, f.move(alice, ""))
	assert.Nil(f.mock.Channels[room])
	assert.False(f.reg.IsManaged(room))
}

func TestFailedDeleteKeepsRoomManaged(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	f.mock.Fail["DeleteChannel"] = fmt.Errorf("missing permissions")

	assert.Error(f.move(alice, ""))
	assert.True(f.reg.IsManaged(room))
	assert.NotNil(f.mock.Channels[room])

	// next departure retries
	delete(f.mock.Fail, "DeleteChannel")
	require.NoError(t, f.move(bob, room))
	require.NoError(t, f.move(bob, ""))
	assert.Nil(f.mock.Channels[room])
	assert.False(f.reg.IsManaged(room))
}

func TestTransferSkipsOwnersOfOtherRooms(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	roomA, _ := f.reg.RoomByOwner(alice)

	// bob gets a room but is left behind in the creation channel
	f.mock.Fail["MoveMember"] = fmt.Errorf("missing permissions")
	require.NoError(t, f.move(bob, creation))
	delete(f.mock.Fail, "MoveMember")
	roomB, _ := f.reg.RoomByOwner(bob)

	require.NoError(t, f.move(bob, roomA))
	require.NoError(t, f.move(carol, roomA))

	require.NoError(t, f.move(alice, ""))
	owner, _ := f.reg.OwnerByRoom(roomA)
	assert.Equal(carol, owner)
	still, _ := f.reg.RoomByOwner(bob)
	assert.Equal(roomB, still)
}

func TestKickedOwnerHandledAsDeparture(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	require.NoError(t, f.move(bob, room))

	require.NoError(t, f.mock.Kick(ctx, testGuild, alice, "spam"))
	require.NoError(t, f.ctl.HandleVoiceUpdate(ctx, VoiceUpdate{GuildID: testGuild, MemberID: alice, Before: room}))

	owner, _ := f.reg.OwnerByRoom(room)
	assert.Equal(bob, owner)
}

func TestOwnerHopsBackToCreation(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	first, _ := f.reg.RoomByOwner(alice)

	require.NoError(t, f.move(alice, creation))
	second, ok := f.reg.RoomByOwner(alice)
	assert.True(ok)
	assert.NotEqual(first, second)
	assert.Nil(f.mock.Channels[first])
	assert.Equal(second, f.location(alice))
	assert.Equal(1, f.reg.Len())
}

func TestOccupantLookupFailureKeepsRoom(t *testing.T) {
	assert := assert.New(t)
	f := newRoomFixture()

	require.NoError(t, f.move(alice, creation))
	room, _ := f.reg.RoomByOwner(alice)
	f.mock.Fail["Occupants"] = fmt.Errorf("gateway timeout")

	assert.Error(f.move(alice, ""))
	assert.True(f.reg.IsManaged(room))
	assert.NotNil(f.mock.Channels[room])
}

// Random walks over voice presence; checks the registry never disagrees with the platform.
func TestRegistryInvariantsUnderRandomMoves(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 20; seed++ {
		faker := gofakeit.New(seed)
		f := newRoomFixture()
		members := []string{alice, bob, carol}
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("%d", 400+i)
			f.mock.AddMember(id, faker.Username())
			members = append(members, id)
		}

		for step := 0; step < 200; step++ {
			dests := append([]string{"", lobby, creation}, slices.Sorted(maps.Keys(f.reg.managed))...)
			member := faker.RandomString(members)
			dest := faker.RandomString(dests)
			require.NoError(t, f.move(member, dest), "seed %d step %d", seed, step)

			rooms := make(map[string]string)
			for owner, room := range f.reg.Owners() {
				prev, dup := rooms[room]
				require.False(t, dup, "room %s owned by %s and %s", room, prev, owner)
				rooms[room] = owner
			}
			require.Equal(t, f.reg.Len(), len(rooms), "seed %d step %d: managed room without owner", seed, step)

			for room := range f.reg.managed {
				require.NotNil(t, f.mock.Channels[room], "seed %d step %d: managed room %s missing", seed, step, room)
				occ, err := f.mock.Occupants(ctx, testGuild, room)
				require.NoError(t, err)
				require.NotEmpty(t, occ, "seed %d step %d: empty room %s survived", seed, step, room)
			}
			for id, ch := range f.mock.Channels {
				if ch.Kind != platform.ChannelVoice || id == creation || id == lobby {
					continue
				}
				require.True(t, f.reg.IsManaged(id), "seed %d step %d: orphaned channel %s", seed, step, id)
			}
		}
	}
}
