package voiceroom

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/avengersguard/guard/moderation/platform"
)

// How strictly ownership transfers requested by an owner are validated.
type TransferStrictness int

const (
	// any user identifier is accepted, including members not currently in the room (eg, to hand the room to a friend who is about to join)
	TransferLenient TransferStrictness = iota
	// the target must be connected to the room
	TransferRequireOccupant
)

func ParseTransferStrictness(s string) (TransferStrictness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return TransferLenient, nil
	case "occupant", "require-occupant", "strict":
		return TransferRequireOccupant, nil
	default:
		return TransferLenient, fmt.Errorf("unknown transfer strictness: %q", s)
	}
}

// Platform's maximum user limit for a voice channel.
const MaxUserLimit = 99

// Owner-only room operations. Every method is gated on the requester owning a room; there is no moderator override here.
type Control struct {
	Logger     *slog.Logger
	Platform   Platform
	Registry   *Registry
	Strictness TransferStrictness
}

func NewControl(logger *slog.Logger, p Platform, reg *Registry, strictness TransferStrictness) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{
		Logger:     logger.With("component", "roomcontrol"),
		Platform:   p,
		Registry:   reg,
		Strictness: strictness,
	}
}

// Room owned by the requester, or ErrNoRoom.
func (c *Control) OwnedRoom(requesterID string) (string, error) {
	roomID, ok := c.Registry.RoomByOwner(requesterID)
	if !ok {
		return "", ErrNoRoom
	}
	return roomID, nil
}

func ParseUserID(raw string) (string, error) {
	id, ok := platform.ParseUserID(raw)
	if !ok {
		return "", fmt.Errorf("%w: not a user id: %q", ErrMalformed, raw)
	}
	return id, nil
}

func (c *Control) setConnect(ctx context.Context, requesterID, op, targetID string, target platform.OverwriteTarget, allow bool) (string, error) {
	roomID, err := c.OwnedRoom(requesterID)
	if err != nil {
		return "", err
	}
	ow := platform.Overwrite{TargetID: targetID, Target: target}
	if allow {
		ow.Allow = platform.PermConnect
	} else {
		ow.Deny = platform.PermConnect
	}
	if err := c.Platform.EditOverwrite(ctx, roomID, ow); err != nil {
		platform.CallErrors.WithLabelValues("EditOverwrite").Inc()
		return "", fmt.Errorf("updating room permissions: %w", err)
	}
	roomControls.WithLabelValues(op).Inc()
	c.Logger.Info("room permissions changed", "op", op, "room", roomID, "owner", requesterID, "target", targetID)
	return roomID, nil
}

// Denies Connect to the default role.
func (c *Control) Lock(ctx context.Context, guildID, requesterID string) (string, error) {
	return c.setConnect(ctx, requesterID, "lock", guildID, platform.TargetRole, false)
}

func (c *Control) Unlock(ctx context.Context, guildID, requesterID string) (string, error) {
	return c.setConnect(ctx, requesterID, "unlock", guildID, platform.TargetRole, true)
}

func (c *Control) Allow(ctx context.Context, guildID, requesterID, rawTarget string) (string, error) {
	if _, err := c.OwnedRoom(requesterID); err != nil {
		return "", err
	}
	target, err := ParseUserID(rawTarget)
	if err != nil {
		return "", err
	}
	if _, err := c.setConnect(ctx, requesterID, "allow", target, platform.TargetMember, true); err != nil {
		return "", err
	}
	return target, nil
}

func (c *Control) Block(ctx context.Context, guildID, requesterID, rawTarget string) (string, error) {
	if _, err := c.OwnedRoom(requesterID); err != nil {
		return "", err
	}
	target, err := ParseUserID(rawTarget)
	if err != nil {
		return "", err
	}
	if _, err := c.setConnect(ctx, requesterID, "block", target, platform.TargetMember, false); err != nil {
		return "", err
	}
	return target, nil
}

// Parses raw as a non-negative integer (0 = unlimited) and applies it as the room's user limit.
func (c *Control) SetLimit(ctx context.Context, guildID, requesterID, raw string) (int, error) {
	roomID, err := c.OwnedRoom(requesterID)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 || n > MaxUserLimit {
		return 0, fmt.Errorf("%w: limit must be a whole number between 0 and %d", ErrMalformed, MaxUserLimit)
	}
	if err := c.Platform.SetChannelUserLimit(ctx, roomID, n); err != nil {
		platform.CallErrors.WithLabelValues("SetChannelUserLimit").Inc()
		return 0, fmt.Errorf("setting room limit: %w", err)
	}
	roomControls.WithLabelValues("limit").Inc()
	c.Logger.Info("room limit changed", "room", roomID, "owner", requesterID, "limit", n)
	return n, nil
}

func (c *Control) Rename(ctx context.Context, guildID, requesterID, raw string) (string, error) {
	roomID, err := c.OwnedRoom(requesterID)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(raw)
	if name == "" || len([]rune(name)) > 100 {
		return "", fmt.Errorf("%w: name must be 1-100 characters", ErrMalformed)
	}
	if err := c.Platform.SetChannelName(ctx, roomID, name); err != nil {
		platform.CallErrors.WithLabelValues("SetChannelName").Inc()
		return "", fmt.Errorf("renaming room: %w", err)
	}
	roomControls.WithLabelValues("rename").Inc()
	c.Logger.Info("room renamed", "room", roomID, "owner", requesterID, "name", name)
	return name, nil
}

// Hands the requester's room to another user. Under TransferLenient the target need not be in the room.
func (c *Control) Transfer(ctx context.Context, guildID, requesterID, rawTarget string) (string, error) {
	roomID, err := c.OwnedRoom(requesterID)
	if err != nil {
		return "", err
	}
	target, err := ParseUserID(rawTarget)
	if err != nil {
		return "", err
	}
	if c.Strictness == TransferRequireOccupant {
		occupants, err := c.Platform.Occupants(ctx, guildID, roomID)
		if err != nil {
			platform.CallErrors.WithLabelValues("Occupants").Inc()
			return "", fmt.Errorf("listing room occupants: %w", err)
		}
		if !slices.Contains(occupants, target) {
			return "", ErrNotOccupant
		}
	}
	if err := c.Registry.TransferOwnership(roomID, target); err != nil {
		return "", err
	}
	roomTransfers.WithLabelValues("owner").Inc()
	c.Logger.Info("room ownership handed over", "room", roomID, "from", requesterID, "to", target)
	return target, nil
}
