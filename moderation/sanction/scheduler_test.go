package sanction

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/avengersguard/guard/moderation/clock"
	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/timers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild      = "guild1"
	roleSanctioned = "role-jailed"
	roleUnreg      = "role-unregistered"
	roleExempt     = "role-exempt"
	roleMember     = "role-member"
	logChannel     = "chan-log"
)

type fixture struct {
	clock  *clock.Fake
	mock   *platform.Mock
	ledger *ledger.MemLedger
	timers *timers.Set
	sched  *Scheduler
}

func newFixture() fixture {
	c := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	mock := platform.NewMock()
	mock.GuildNames[testGuild] = "Avengers"
	mock.AddMember("x", "xavier", roleMember)
	l := ledger.NewMemLedger(c)
	ts := timers.NewSet(c, nil)
	sched := NewScheduler(slog.Default(), mock, l, ts, Config{
		SanctionedRoleID:   roleSanctioned,
		UnregisteredRoleID: roleUnreg,
		ExemptRoleID:       roleExempt,
		LogChannelID:       logChannel,
	})
	return fixture{clock: c, mock: mock, ledger: l, timers: ts, sched: sched}
}

func TestApplyReplacesRoles(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	rec := f.sched.Apply(ctx, testGuild, "x", "mod1", "Jail: 3h", 3*time.Hour)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("x"))
	assert.True(rec.Active)
	assert.Equal("mod1", rec.IssuerID)
	assert.True(f.timers.Armed("x"))

	dms := f.mock.DMsTo("x")
	require.Len(t, dms, 1)
	assert.Contains(dms[0], "Avengers")
	assert.Contains(dms[0], "<@mod1>")
	assert.Contains(dms[0], "Jail: 3h")
	assert.Contains(dms[0], "01.05.2026 10:00:00 - 01.05.2026 13:00:00")

	require.Len(t, f.mock.ChannelMsgs, 1)
	assert.Equal(logChannel, f.mock.ChannelMsgs[0].To)
}

func TestApplyIndefiniteSystem(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	rec := f.sched.Apply(context.Background(), testGuild, "x", "", "Banned word usage", 0)
	assert.Nil(rec.EndAt)
	assert.False(f.timers.Armed("x"))
	dms := f.mock.DMsTo("x")
	require.Len(t, dms, 1)
	assert.Contains(dms[0], SystemIssuerText)
	assert.Contains(dms[0], IndefiniteText)
}

func TestApplyToleratesNotificationFailure(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.mock.Fail["SendDirectMessage"] = fmt.Errorf("cannot send messages to this user")
	f.mock.Fail["SendChannelMessage"] = fmt.Errorf("missing access")
	f.mock.Fail["SetRoles"] = fmt.Errorf("missing permissions")

	f.sched.Apply(context.Background(), testGuild, "x", "mod1", "Jail: 1 day", 24*time.Hour)
	hist := f.ledger.History("x")
	require.Len(t, hist, 1)
	assert.True(hist[0].Active)
}

func TestTimedSanctionExpires(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	rec := f.sched.Apply(context.Background(), testGuild, "x", "mod1", "Jail: 3h", 3*time.Hour)
	f.clock.Advance(3 * time.Hour)

	assert.Equal([]string{roleUnreg}, f.mock.RolesOf("x"))
	assert.False(f.ledger.IsActive("x", rec.Seq))
	assert.Contains(f.mock.DMsTo("x"), ExpiryText)
	assert.False(f.timers.Armed("x"))
}

func TestSecondSanctionCancelsFirstTimer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	first := f.sched.Apply(ctx, testGuild, "x", "mod1", "first", 1000*time.Millisecond)
	f.clock.Advance(100 * time.Millisecond)
	second := f.sched.Apply(ctx, testGuild, "x", "mod1", "second", 5000*time.Millisecond)

	f.clock.Advance(1000 * time.Millisecond) // t=1100ms
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("x"))
	assert.False(f.ledger.IsActive("x", first.Seq))
	assert.True(f.ledger.IsActive("x", second.Seq))

	f.clock.Advance(4000 * time.Millisecond) // t=5100ms
	assert.Equal([]string{roleUnreg}, f.mock.RolesOf("x"))
	assert.False(f.ledger.IsActive("x", second.Seq))
}

func TestIndefiniteSanctionCancelsTimer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	f.sched.Apply(ctx, testGuild, "x", "mod1", "timed", time.Second)
	f.sched.Apply(ctx, testGuild, "x", "", "Banned word usage", 0)
	f.clock.Advance(2 * time.Second)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("x"))
}

func TestReleaseBeforeExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	f.sched.Apply(ctx, testGuild, "x", "mod1", "short", 100*time.Millisecond)
	f.clock.Advance(50 * time.Millisecond)
	f.sched.Release(ctx, testGuild, "x")
	assert.Equal([]string{roleUnreg}, f.mock.RolesOf("x"))

	dmsBefore := len(f.mock.DMsTo("x"))
	f.clock.Advance(100 * time.Millisecond) // t=150ms
	assert.Equal([]string{roleUnreg}, f.mock.RolesOf("x"))
	assert.Len(f.mock.DMsTo("x"), dmsBefore)
	for _, r := range f.ledger.History("x") {
		assert.False(r.Active)
	}
}

// the re-check guard holds even when the timer was never cancelled
func TestStaleExpiryIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	rec := f.sched.Apply(ctx, testGuild, "x", "mod1", "short", 100*time.Millisecond)
	f.sched.Release(ctx, testGuild, "x")

	// member gets jailed again by hand, outside this engine
	require.NoError(t, f.mock.SetRoles(ctx, testGuild, "x", []string{roleSanctioned}))
	f.sched.expire(ctx, testGuild, "x", rec.Seq)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("x"))
}

func TestExpiryRequiresSanctionedRole(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	rec := f.sched.Apply(ctx, testGuild, "x", "mod1", "short", time.Minute)
	// a moderator registered the member by hand in the meantime
	require.NoError(t, f.mock.SetRoles(ctx, testGuild, "x", []string{roleMember}))
	f.clock.Advance(time.Minute)

	assert.Equal([]string{roleMember}, f.mock.RolesOf("x"))
	assert.False(f.ledger.IsActive("x", rec.Seq))
}

func TestApplyProtectiveExemption(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()
	f.mock.AddMember("boss", "boss", roleExempt)

	_, ok := f.sched.ApplyProtective(ctx, testGuild, "boss", "Unauthorized role delete", 0)
	assert.False(ok)
	assert.Equal([]string{roleExempt}, f.mock.RolesOf("boss"))
	assert.Empty(f.ledger.History("boss"))

	_, ok = f.sched.ApplyProtective(ctx, testGuild, "ghost", "Unauthorized role delete", 0)
	assert.False(ok)

	rec, ok := f.sched.ApplyProtective(ctx, testGuild, "x", "Unauthorized role delete", 0)
	assert.True(ok)
	assert.Empty(rec.IssuerID)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("x"))

	// manual sanctions ignore exemption
	f.sched.Apply(ctx, testGuild, "boss", "mod1", "manual", 0)
	assert.Equal([]string{roleSanctioned}, f.mock.RolesOf("boss"))
}

func TestRecordAction(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	f.sched.RecordAction(context.Background(), testGuild, "x", "mod1", "Ban: spam")
	assert.Equal([]string{roleMember}, f.mock.RolesOf("x"))
	hist := f.ledger.History("x")
	require.Len(t, hist, 1)
	assert.Equal("Ban: spam", hist[0].Reason)
	assert.Len(f.mock.DMsTo("x"), 1)
}
