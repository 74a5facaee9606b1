package guard

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/avengersguard/guard/moderation/clock"
	"github.com/avengersguard/guard/moderation/keyword"
	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/sanction"
	"github.com/avengersguard/guard/moderation/timers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild      = "guild1"
	roleSanctioned = "role-jailed"
	roleUnreg      = "role-unregistered"
	roleExempt     = "role-exempt"
	roleFounder    = "role-founder"
	roleMember     = "role-member"
	logChannel     = "chan-log"
)

type fixture struct {
	mock   *platform.Mock
	ledger *ledger.MemLedger
	guard  *Guard
}

func newFixture() fixture {
	c := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	mock := platform.NewMock()
	mock.AddMember("rogue", "rogue", roleMember)
	mock.AddMember("boss", "boss", roleExempt)
	mock.AddMember("founder", "founder", roleFounder)
	l := ledger.NewMemLedger(c)
	sched := sanction.NewScheduler(slog.Default(), mock, l, timers.NewSet(c, nil), sanction.Config{
		SanctionedRoleID:   roleSanctioned,
		UnregisteredRoleID: roleUnreg,
		ExemptRoleID:       roleExempt,
		LogChannelID:       logChannel,
	})
	g := NewGuard(nil, mock, sched, keyword.DefaultList(), Config{
		BypassRoleIDs: []string{roleFounder},
		LogChannelID:  logChannel,
		IgnoreChannel: func(id string) bool { return id == "room1" },
	})
	return fixture{mock: mock, ledger: l, guard: g}
}

func (f fixture) logLines() []string {
	var out []string
	for _, m := range f.mock.ChannelMsgs {
		if m.To == logChannel {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestRoleDeleteRecreatesAndJails(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Executors[platform.AuditRoleDelete] = &platform.Actor{ID: "rogue", Tag: "rogue#0001"}

	f.guard.RoleDeleted(context.Background(), testGuild, platform.Role{ID: "r1", Name: "Mods", Color: 0xff0000, Hoist: true})

	require.Len(t, f.mock.RoleDefs, 1)
	for _, r := range f.mock.RoleDefs {
		assert.Equal("Mods", r.Name)
		assert.Equal(0xff0000, r.Color)
		assert.True(r.Hoist)
	}
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
	hist := f.ledger.History("rogue")
	require.Len(t, hist, 1)
	assert.Equal(ReasonRoleDelete, hist[0].Reason)
	assert.Empty(hist[0].IssuerID)
	assert.Nil(hist[0].EndAt)

	lines := f.logLines()
	require.NotEmpty(t, lines)
	assert.Contains(lines[len(lines)-1], "rogue#0001")
	assert.Contains(lines[len(lines)-1], "Mods")
}

func TestRoleCreateDeletesRole(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()
	created, err := f.mock.CreateRole(ctx, testGuild, platform.Role{Name: "sneaky"})
	require.NoError(t, err)
	f.mock.Executors[platform.AuditRoleCreate] = &platform.Actor{ID: "rogue"}

	f.guard.RoleCreated(ctx, testGuild, *created)
	assert.NotContains(f.mock.RoleDefs, created.ID)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
}

func TestExemptAndBypassAllowed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	for _, who := range []string{"boss", "founder"} {
		f.mock.Executors[platform.AuditChannelCreate] = &platform.Actor{ID: who}
		f.mock.AddChannel(platform.Channel{ID: "c-" + who, Name: "new"})
		f.guard.ChannelCreated(ctx, testGuild, platform.Channel{ID: "c-" + who, Name: "new"})
		assert.Contains(f.mock.Channels, "c-"+who)
		assert.Empty(f.ledger.History(who))
	}
	assert.Empty(f.logLines())
}

func TestBotAndUnknownExecutorsIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()
	f.mock.AddChannel(platform.Channel{ID: "c1", Name: "new"})

	// no audit entry
	f.guard.ChannelCreated(ctx, testGuild, platform.Channel{ID: "c1"})
	// made by a bot (including ourselves)
	f.mock.Executors[platform.AuditChannelCreate] = &platform.Actor{ID: "somebot", Bot: true}
	f.guard.ChannelCreated(ctx, testGuild, platform.Channel{ID: "c1"})
	// executor already left
	f.mock.Executors[platform.AuditChannelCreate] = &platform.Actor{ID: "ghost"}
	f.guard.ChannelCreated(ctx, testGuild, platform.Channel{ID: "c1"})

	assert.Contains(f.mock.Channels, "c1")
	assert.Empty(f.mock.ChannelMsgs)
}

func TestChannelDeleteRecreates(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Executors[platform.AuditChannelDelete] = &platform.Actor{ID: "rogue"}
	deny := []platform.Overwrite{{TargetID: testGuild, Target: platform.TargetRole, Deny: platform.PermViewChannel}}

	f.guard.ChannelDeleted(context.Background(), testGuild, platform.Channel{
		ID: "c1", Name: "rules", ParentID: "cat1", Kind: platform.ChannelText, Overwrites: deny,
	})

	require.Len(t, f.mock.Channels, 1)
	for _, ch := range f.mock.Channels {
		assert.Equal("rules", ch.Name)
		assert.Equal("cat1", ch.ParentID)
		assert.Equal(deny, ch.Overwrites)
	}
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
}

func TestIgnoredChannels(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Executors[platform.AuditChannelDelete] = &platform.Actor{ID: "rogue"}

	f.guard.ChannelDeleted(context.Background(), testGuild, platform.Channel{ID: "room1", Name: "🔊 rogue's Room"})
	assert.Empty(f.mock.Channels)
	assert.Equal([]string{roleMember}, f.mock.RolesOf("rogue"))
}

func TestBotAddKicksBot(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.AddMember("spambot", "spambot")
	f.mock.Executors[platform.AuditBotAdd] = &platform.Actor{ID: "rogue", Tag: "rogue#0001"}

	f.guard.BotAdded(context.Background(), testGuild, platform.Member{ID: "spambot", Username: "spambot", Bot: true})
	assert.Equal(ReasonBotAdd, f.mock.Kicked["spambot"])
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
}

func TestRevertFailureStillSanctions(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Fail["CreateRole"] = errors.New("missing permissions")
	f.mock.Executors[platform.AuditRoleDelete] = &platform.Actor{ID: "rogue"}

	f.guard.RoleDeleted(context.Background(), testGuild, platform.Role{ID: "r1", Name: "Mods"})
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
}

func TestAuditFailureLeavesChange(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Fail["ResolveExecutor"] = errors.New("missing permissions")
	f.mock.AddChannel(platform.Channel{ID: "c1"})

	f.guard.ChannelCreated(context.Background(), testGuild, platform.Channel{ID: "c1"})
	assert.Contains(f.mock.Channels, "c1")
}

func TestBannedWordMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()
	author, _ := f.mock.FetchMember(ctx, testGuild, "rogue")

	handled := f.guard.CheckMessage(ctx, Message{GuildID: testGuild, ChannelID: "general", MessageID: "m1", Author: author, Content: "come to discord.gg/xyz"})
	assert.True(handled)
	assert.Contains(f.mock.Deleted, "m1")
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("rogue"))
	hist := f.ledger.History("rogue")
	require.Len(t, hist, 1)
	assert.Equal(ReasonBannedWord, hist[0].Reason)
	assert.Nil(hist[0].EndAt)
}

func TestCleanOrExemptMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()
	rogue, _ := f.mock.FetchMember(ctx, testGuild, "rogue")
	boss, _ := f.mock.FetchMember(ctx, testGuild, "boss")

	assert.False(f.guard.CheckMessage(ctx, Message{GuildID: testGuild, MessageID: "m1", Author: rogue, Content: "hello"}))
	assert.False(f.guard.CheckMessage(ctx, Message{GuildID: testGuild, MessageID: "m2", Author: boss, Content: "discord.gg/ours"}))
	assert.False(f.guard.CheckMessage(ctx, Message{GuildID: testGuild, MessageID: "m3", Author: &platform.Member{ID: "b", Bot: true}, Content: "discord.gg/x"}))
	assert.Empty(f.mock.Deleted)
}
