package moderation

import (
	"log/slog"
	"time"

	"github.com/avengersguard/guard/moderation/clock"
	"github.com/avengersguard/guard/moderation/platform"
)

// IDs used by EngineTestFixture.
const (
	TestGuildID          = "900"
	TestSanctionedRoleID = "910"
	TestUnregRoleID      = "911"
	TestExemptRoleID     = "912"
	TestModeratorRoleID  = "913"
	TestLogChannelID     = "920"
	TestCategoryID       = "930"
	TestCreationID       = "931"
	TestModeratorID      = "100"
	TestMemberID         = "200"
	TestExemptID         = "300"
)

// Engine over a platform.Mock with a voice category, a room creation channel, a moderator, a regular member, and an exempt member. Timers run on the returned fake clock.
func EngineTestFixture() (*Engine, *platform.Mock, *clock.Fake) {
	c := clock.NewFake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	mock := platform.NewMock()
	mock.GuildNames[TestGuildID] = "Avengers"
	mock.AddChannel(platform.Channel{ID: TestCategoryID, Name: "AVENGERS", Kind: platform.ChannelCategory})
	mock.AddChannel(platform.Channel{ID: TestCreationID, Name: "🚪 Avengers Kanal Oluşturma", ParentID: TestCategoryID, Kind: platform.ChannelVoice})
	mock.AddMember(TestModeratorID, "moderator", TestModeratorRoleID)
	mock.AddMember(TestMemberID, "member", TestUnregRoleID)
	mock.AddMember(TestExemptID, "boss", TestExemptRoleID)

	eng, err := NewEngine(slog.Default(), mock, c, nil, nil, Config{
		SanctionedRoleID:   TestSanctionedRoleID,
		UnregisteredRoleID: TestUnregRoleID,
		ExemptRoleID:       TestExemptRoleID,
		LogChannelID:       TestLogChannelID,
		ModeratorRoleIDs:   []string{TestModeratorRoleID},
	})
	if err != nil {
		panic(err)
	}
	eng.Commands.Async = func(fn func()) { fn() }
	return eng, mock, c
}
