package voiceroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/avengersguard/guard/moderation/platform"
)

// Subset of the platform the room lifecycle drives.
type Platform interface {
	platform.Channels
	platform.Voice
	platform.Messenger
}

const DefaultCreationChannelName = "Avengers Kanal Oluşturma"

// Format for new room names; the single verb is the creator's username.
const DefaultRoomNameFormat = "🔊 %s's Room"

type ControllerConfig struct {
	// matched exactly if set
	CreationChannelID string
	// otherwise, a voice channel whose name contains this text is the creation channel
	CreationChannelName string
	RoomNameFormat      string
}

// A member's voice presence changed. Before and After are channel IDs, empty when not connected.
type VoiceUpdate struct {
	GuildID  string
	MemberID string
	Username string
	Before   string
	After    string
	// channel the member joined, if known; used to recognize the creation channel and its parent category
	AfterChannel *platform.Channel
}

// Reacts to voice presence transitions. Not safe for concurrent use: updates must be handled one at a time, on the control thread.
type Controller struct {
	Logger   *slog.Logger
	Platform Platform
	Registry *Registry
	Config   ControllerConfig
}

func NewController(logger *slog.Logger, p Platform, reg *Registry, config ControllerConfig) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CreationChannelID == "" && config.CreationChannelName == "" {
		config.CreationChannelName = DefaultCreationChannelName
	}
	if config.RoomNameFormat == "" {
		config.RoomNameFormat = DefaultRoomNameFormat
	}
	return &Controller{
		Logger:   logger.With("component", "voiceroom"),
		Platform: p,
		Registry: reg,
		Config:   config,
	}
}

func (c *Controller) IsCreationChannel(ch *platform.Channel) bool {
	if ch == nil {
		return false
	}
	if c.Config.CreationChannelID != "" {
		return ch.ID == c.Config.CreationChannelID
	}
	return strings.Contains(ch.Name, c.Config.CreationChannelName)
}

func (c *Controller) HandleVoiceUpdate(ctx context.Context, u VoiceUpdate) error {
	defer func() { managedRooms.Set(float64(c.Registry.Len())) }()
	logger := c.Logger.With("guild", u.GuildID, "member", u.MemberID)

	// departure is handled before entry, so an owner hopping back to the creation channel has already vacated the old room
	var errs []error
	if u.Before != "" && u.Before != u.After && c.Registry.IsManaged(u.Before) {
		if err := c.leaveRoom(ctx, logger, u); err != nil {
			errs = append(errs, err)
		}
	}
	if u.AfterChannel != nil && u.AfterChannel.ID == u.After && c.IsCreationChannel(u.AfterChannel) {
		if err := c.enterCreation(ctx, logger, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) enterCreation(ctx context.Context, logger *slog.Logger, u VoiceUpdate) error {
	if roomID, ok := c.Registry.RoomByOwner(u.MemberID); ok {
		exists, err := c.Platform.ChannelExists(ctx, u.GuildID, roomID)
		if err != nil {
			// can't tell whether the room is stale; never risk a second room
			platform.CallErrors.WithLabelValues("ChannelExists").Inc()
			return fmt.Errorf("checking existing room %s: %w", roomID, err)
		}
		if exists {
			logger.Debug("member already owns a live room", "room", roomID)
			return nil
		}
		logger.Info("purging stale room entry", "room", roomID)
		c.Registry.Purge(u.MemberID)
	}

	creation := u.AfterChannel
	name := u.Username
	if name == "" {
		name = u.MemberID
	}
	ch, err := c.Platform.CreateChannel(ctx, u.GuildID, platform.ChannelSpec{
		Name:     fmt.Sprintf(c.Config.RoomNameFormat, name),
		Kind:     platform.ChannelVoice,
		ParentID: creation.ParentID,
		Overwrites: []platform.Overwrite{
			{TargetID: u.MemberID, Target: platform.TargetMember, Allow: platform.PermConnect | platform.PermManageChannels},
			// the @everyone role shares the guild's ID
			{TargetID: u.GuildID, Target: platform.TargetRole, Deny: platform.PermConnect},
		},
		Reason: "ephemeral voice room",
	})
	if err != nil {
		platform.CallErrors.WithLabelValues("CreateChannel").Inc()
		return fmt.Errorf("creating room: %w", err)
	}
	if err := c.Registry.AssignNewRoom(u.MemberID, ch.ID); err != nil {
		// only reachable if the registry was mutated behind our back; don't leave an orphan
		if derr := c.Platform.DeleteChannel(ctx, ch.ID); derr != nil {
			platform.CallErrors.WithLabelValues("DeleteChannel").Inc()
		}
		return fmt.Errorf("registering room %s: %w", ch.ID, err)
	}
	roomsCreated.Inc()
	logger.Info("created voice room", "room", ch.ID, "name", ch.Name)

	cur, err := c.Platform.VoiceChannelOf(ctx, u.GuildID, u.MemberID)
	if err != nil {
		platform.CallErrors.WithLabelValues("VoiceChannelOf").Inc()
		logger.Warn("failed to read member voice state", "err", err)
		return nil
	}
	if cur == creation.ID {
		if err := c.Platform.MoveMember(ctx, u.GuildID, u.MemberID, ch.ID); err != nil {
			platform.CallErrors.WithLabelValues("MoveMember").Inc()
			logger.Warn("failed to move member into new room", "err", err, "room", ch.ID)
		}
	}
	return nil
}

func (c *Controller) leaveRoom(ctx context.Context, logger *slog.Logger, u VoiceUpdate) error {
	roomID := u.Before
	logger = logger.With("room", roomID)

	// live count, never a cached one: a concurrent join must keep the room alive
	occupants, err := c.Platform.Occupants(ctx, u.GuildID, roomID)
	if err != nil {
		platform.CallErrors.WithLabelValues("Occupants").Inc()
		return fmt.Errorf("listing occupants of %s: %w", roomID, err)
	}

	if len(occupants) == 0 {
		if err := c.Platform.DeleteChannel(ctx, roomID); err != nil {
			platform.CallErrors.WithLabelValues("DeleteChannel").Inc()
			// stays managed, so the next departure retries the delete
			logger.Warn("failed to delete empty room", "err", err)
			return fmt.Errorf("deleting empty room %s: %w", roomID, err)
		}
		c.Registry.Release(roomID)
		roomsDeleted.Inc()
		logger.Info("deleted empty voice room")
		return nil
	}

	owner, hasOwner := c.Registry.OwnerByRoom(roomID)
	if hasOwner && (u.MemberID != owner || slices.Contains(occupants, owner)) {
		// a non-owner left, or the owner is still connected; an absent owner keeps the room
		return nil
	}
	for _, candidate := range occupants {
		if err := c.Registry.TransferOwnership(roomID, candidate); err != nil {
			// candidate already owns a different room; try the next one
			continue
		}
		roomTransfers.WithLabelValues("departure").Inc()
		logger.Info("transferred room ownership", "from", owner, "to", candidate)
		if err := c.Platform.SendDirectMessage(ctx, candidate, fmt.Sprintf("👑 You are now the owner of <#%s>!", roomID)); err != nil {
			platform.CallErrors.WithLabelValues("SendDirectMessage").Inc()
			logger.Debug("failed to notify new room owner", "err", err)
		}
		return nil
	}
	logger.Warn("no remaining occupant can take over room ownership", "occupants", len(occupants))
	return nil
}
